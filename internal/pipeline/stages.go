package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/prompts"
	"github.com/jonathan/research-agent/internal/search"
)

// Progress log entries written into State.Logs.
const (
	logSearchComplete  = "Search complete. Analyze results..."
	logGenerating      = "Generating report..."
	logReportGenerated = "Report generated."
)

// errStopped is returned by a stage whose token consumer asked it to stop.
var errStopped = errors.New("pipeline: consumer stopped")

// Deps are the providers a stage may call. They are built once at startup
// and shared by every run.
type Deps struct {
	Search search.Provider
	LLM    llm.Client
	Tier   llm.ModelTier
	Logger *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Research searches for the topic and appends one serialized result entry.
// A search failure is recorded in the logs and never returned.
func Research(ctx context.Context, deps Deps, state State) (Update, error) {
	logs := []string{fmt.Sprintf("Searching for: %s...", state.Topic)}

	entry, err := runSearch(ctx, deps, state.Topic)
	if err != nil {
		deps.logger().Warn("search failed", zap.Error(err))
		return Update{
			SearchResults: []string{},
			Logs:          append(logs, fmt.Sprintf("Search failed: %v", err)),
		}, nil
	}

	return Update{
		SearchResults: []string{entry},
		Logs:          append(logs, logSearchComplete),
	}, nil
}

func runSearch(ctx context.Context, deps Deps, topic string) (string, error) {
	if deps.Search == nil {
		return "", errors.New("no search provider configured")
	}

	results, err := deps.Search.Search(ctx, topic)
	if err != nil {
		return "", err
	}
	deps.logger().Debug("search complete",
		zap.String("provider", deps.Search.Name()),
		zap.Int("results", len(results)))

	return search.Format(results)
}

// Write asks the model for a markdown report built from every search result.
// With a non-nil onToken the model is streamed and each fragment is handed
// over before the next one is read. Generation errors are returned.
func Write(ctx context.Context, deps Deps, state State, onToken TokenFunc) (Update, error) {
	if deps.LLM == nil {
		return Update{}, errors.New("no generation provider configured")
	}

	messages, err := reportMessages(state)
	if err != nil {
		return Update{}, err
	}

	tier := deps.Tier
	if tier == "" {
		tier = llm.TierAdvanced
	}

	// A model that answers with no text yields an empty report in both
	// modes; the run completes and nothing is saved.
	var report string
	if onToken == nil {
		report, err = deps.LLM.Generate(ctx, messages, tier)
		if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
			return Update{}, fmt.Errorf("report generation failed: %w", err)
		}
	} else {
		var sb strings.Builder
		for fragment, err := range deps.LLM.Stream(ctx, messages, tier) {
			if errors.Is(err, llm.ErrEmptyResponse) {
				break
			}
			if err != nil {
				return Update{}, fmt.Errorf("report generation failed: %w", err)
			}
			if fragment == "" {
				continue
			}
			sb.WriteString(fragment)
			if !onToken(fragment) {
				return Update{}, errStopped
			}
		}
		report = sb.String()
	}

	deps.logger().Debug("report generated",
		zap.String("model", deps.LLM.GetModel(tier)),
		zap.Int("chars", len(report)))

	return Update{
		Report: report,
		Logs:   []string{logGenerating, logReportGenerated},
	}, nil
}

func reportMessages(state State) ([]llm.Message, error) {
	system, err := prompts.Get(prompts.ResearchFile, prompts.KeySystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render(prompts.ResearchFile, prompts.KeyWrite, map[string]string{
		"Topic":   state.Topic,
		"Context": strings.Join(state.SearchResults, "\n\n"),
	})
	if err != nil {
		return nil, err
	}
	return []llm.Message{llm.SystemMessage(system), llm.UserMessage(user)}, nil
}
