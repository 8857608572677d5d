package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-service/internal/models"
)

// EventType names a progress event of a research run.
type EventType string

const (
	EventStart    EventType = "start"
	EventSearch   EventType = "search"
	EventAnalysis EventType = "analysis"
	EventContent  EventType = "content"
	EventComplete EventType = "complete"
)

// Event is one message on the research stream.
type Event struct {
	Type              EventType  `json:"type"`
	Message           string     `json:"message,omitempty"`
	Content           string     `json:"content,omitempty"`
	Response          string     `json:"response,omitempty"`
	Route             Route      `json:"route,omitempty"`
	Sources           []Result   `json:"sources,omitempty"`
	FollowUpQuestions []string   `json:"followUpQuestions,omitempty"`
	Error             *Failure   `json:"error,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// TranscriptStore receives each question and answer.
type TranscriptStore interface {
	AddEntry(ctx context.Context, entry models.TranscriptEntry) error
}

// Agent routes questions and streams the answer as typed events.
type Agent struct {
	searcher    Searcher
	completer   Completer
	transcripts TranscriptStore
	log         zerolog.Logger
	now         func() time.Time
	newID       func() string
}

// NewAgent wires an Agent. completer and transcripts may be nil; without a
// completer answers are extractive only.
func NewAgent(searcher Searcher, completer Completer, transcripts TranscriptStore, log zerolog.Logger) *Agent {
	return &Agent{
		searcher:    searcher,
		completer:   completer,
		transcripts: transcripts,
		log:         log.With().Str("component", "research-agent").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

var tracer = otel.Tracer("chat-service/research")

// Stream answers question for userID. The returned channel is unbuffered and
// closed when the run ends; cancelling ctx stops the run and any upstream
// search or completion call in flight.
func (a *Agent) Stream(ctx context.Context, userID, question string) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		a.run(ctx, userID, question, events)
	}()
	return events
}

type answer struct {
	query     string
	response  string
	sources   []Result
	followUps []string
	failure   *Failure
}

func (a *Agent) run(ctx context.Context, userID, question string, events chan<- Event) {
	ctx, span := tracer.Start(ctx, "research.ask")
	defer span.End()

	route := Classify(question)
	span.SetAttributes(attribute.String("research.route", string(route)))
	log := a.log.With().Str("user_id", userID).Str("route", string(route)).Logger()

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(Event{Type: EventStart, Message: "Processing your question...", Route: route}) {
		return
	}
	a.record(ctx, models.TranscriptEntry{UserID: userID, Role: models.TranscriptRoleUser, Content: question, Route: string(route)})

	var ans answer
	switch route {
	case RouteSearchThenAnalyze:
		if !send(Event{Type: EventSearch, Message: "Searching the web..."}) {
			return
		}
		outcome := a.search(ctx, question)
		if !send(Event{Type: EventAnalysis, Message: "Analyzing search results..."}) {
			return
		}
		ans = a.analyze(ctx, question, outcome)
	default:
		if !send(Event{Type: EventAnalysis, Message: "Thinking..."}) {
			return
		}
		ans = a.direct(ctx, question)
	}
	if ctx.Err() != nil {
		log.Info().Msg("research run cancelled by client")
		return
	}

	if ans.failure != nil {
		span.SetStatus(codes.Error, ans.failure.Type)
		log.Warn().Str("failure", ans.failure.Type).Str("error", ans.failure.Error).Msg("research run degraded")
	}

	if !send(Event{Type: EventContent, Content: ans.response}) {
		return
	}
	ts := a.now()
	if !send(Event{
		Type:              EventComplete,
		Response:          ans.response,
		Route:             route,
		Sources:           ans.sources,
		FollowUpQuestions: ans.followUps,
		Error:             ans.failure,
		Timestamp:         &ts,
	}) {
		return
	}

	entry := models.TranscriptEntry{
		UserID:            userID,
		Role:              models.TranscriptRoleAssistant,
		Content:           ans.response,
		Route:             string(route),
		SearchQuery:       ans.query,
		FollowUpQuestions: ans.followUps,
	}
	for _, src := range ans.sources {
		entry.Sources = append(entry.Sources, models.TranscriptSource{Title: src.Title, URL: src.URL, Snippet: src.Content, Source: src.Source})
	}
	a.record(ctx, entry)
}

func (a *Agent) search(ctx context.Context, query string) Outcome {
	ctx, span := tracer.Start(ctx, "research.search")
	defer span.End()
	outcome := a.searcher.Search(ctx, query)
	if raw, err := marshalOutcome(outcome); err == nil {
		a.log.Debug().RawJSON("outcome", raw).Msg("search stage finished")
	}
	return outcome
}

func (a *Agent) analyze(ctx context.Context, question string, outcome Outcome) answer {
	ans := answer{query: question}

	switch o := outcome.(type) {
	case SearchError:
		ans.failure = failureOf(o)
		ans.response = a.fallbackAnswer(ctx, question)
		return ans
	case SearchResults:
		outcome = Analyze(o, a.now())
	case Analysis, AnalysisError:
	}

	switch o := outcome.(type) {
	case Analysis:
		ans.followUps = o.FollowUpQuestions
		for _, src := range o.Sources {
			ans.sources = append(ans.sources, src.Result)
		}
		ans.response = o.Summary
		if a.completer != nil {
			text, err := a.complete(ctx, synthesisPrompt(question, o.Sources))
			if err != nil {
				ans.failure = failureOf(AnalysisError{Query: question, Err: err.Error(), Message: "Answer synthesis failed; showing extracted findings", Timestamp: a.now()})
			} else if text != "" {
				ans.response = text
			}
		}
	case AnalysisError:
		ans.failure = failureOf(o)
		ans.response = a.fallbackAnswer(ctx, question)
	case SearchResults, SearchError:
	}
	return ans
}

func (a *Agent) direct(ctx context.Context, question string) answer {
	var ans answer
	if a.completer == nil {
		ans.failure = failureOf(AnalysisError{Query: question, Err: "no language model configured", Message: "Unable to answer without a language model", Timestamp: a.now()})
		ans.response = "I'm unable to answer that right now."
		return ans
	}
	text, err := a.complete(ctx, directPrompt(question))
	if err != nil {
		ans.failure = failureOf(AnalysisError{Query: question, Err: err.Error(), Message: "The language model did not respond", Timestamp: a.now()})
		ans.response = "I encountered an error processing your request."
		return ans
	}
	ans.response = text
	return ans
}

// fallbackAnswer answers from general knowledge when search produced nothing.
func (a *Agent) fallbackAnswer(ctx context.Context, question string) string {
	if a.completer != nil {
		if text, err := a.complete(ctx, directPrompt(question)); err == nil && text != "" {
			return text
		}
	}
	return "I couldn't find search results for your question. Please try rephrasing it."
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "research.llm")
	defer span.End()
	text, err := a.completer.Complete(ctx, assistantPersona, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
	}
	return text, err
}

func (a *Agent) record(ctx context.Context, entry models.TranscriptEntry) {
	if a.transcripts == nil || ctx.Err() != nil {
		return
	}
	entry.ID = a.newID()
	entry.CreatedAt = a.now()
	if err := a.transcripts.AddEntry(ctx, entry); err != nil {
		a.log.Error().Err(err).Str("user_id", entry.UserID).Msg("failed to record transcript entry")
	}
}
