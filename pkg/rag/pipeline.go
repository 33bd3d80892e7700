// Package rag answers questions about the indexed textbook.
package rag

import (
	"context"
	"fmt"

	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/retrieval"
)

// SystemPrompt frames every answer
const SystemPrompt = "You are an expert assistant for a 10th-grade mathematics textbook. " +
	"Answer the user's question based *only* on the following context. " +
	"If the context does not contain the answer, state that. " +
	"When possible, cite the page number from the source metadata."

const (
	questionTemplate = "CONTEXT:\n%s\n\nQUESTION:\n%s"
	summaryTemplate  = "Concisely summarize the following context, which was retrieved to answer a user's question. " +
		"Focus on the key facts, formulas, and definitions.\n\nCONTEXT:\n%s"
)

// NoSummary is the summary when summarization was not requested
const NoSummary = "N/A"

// Stage is a step of the answer pipeline. Stages run in declaration order.
type Stage int

const (
	StageLoadHistory Stage = iota
	StageRetrieve
	StageSummarize
	StageAnswer
	StagePersist
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageLoadHistory:
		return "load history"
	case StageRetrieve:
		return "retrieve"
	case StageSummarize:
		return "summarize"
	case StageAnswer:
		return "answer"
	case StagePersist:
		return "persist"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports which stage failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// History loads and saves conversation turns by session id
type History interface {
	Load(id string) ([]models.Message, error)
	Save(id string, history []models.Message) error
}

// Request is one question
type Request struct {
	Question  string
	Summarize bool
	// SessionID enables history; empty means a one-off question
	SessionID string
}

// Result is everything produced while answering
type Result struct {
	Question string
	Context  string
	Sources  []models.SearchResult
	Summary  string
	Answer   string
}

// Pipeline wires retrieval, the chat model and session history
type Pipeline struct {
	retriever retrieval.Service
	client    llm.Client
	history   History
	config    llm.ModelConfig
}

// New creates a pipeline. history may be nil when sessions are not used.
func New(retriever retrieval.Service, client llm.Client, history History) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		client:    client,
		history:   history,
		config:    llm.DefaultModelConfig(),
	}
}

type run struct {
	req     Request
	history []models.Message
	result  *Result
}

// Ask runs every stage for req and returns the result
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Result, error) {
	st := &run{req: req, result: &Result{Question: req.Question}}

	for stage := StageLoadHistory; stage != StageDone; stage++ {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: stage, Err: err}
		}
		logger.Debug("🔄 Stage: %s", stage)
		if err := p.step(ctx, stage, st); err != nil {
			return nil, &StageError{Stage: stage, Err: err}
		}
	}
	return st.result, nil
}

func (p *Pipeline) step(ctx context.Context, stage Stage, st *run) error {
	switch stage {
	case StageLoadHistory:
		return p.loadHistory(st)
	case StageRetrieve:
		return p.retrieve(ctx, st)
	case StageSummarize:
		return p.summarize(ctx, st)
	case StageAnswer:
		return p.answer(ctx, st)
	case StagePersist:
		return p.persist(st)
	}
	return nil
}

func (p *Pipeline) loadHistory(st *run) error {
	if st.req.SessionID == "" || p.history == nil {
		return nil
	}
	history, err := p.history.Load(st.req.SessionID)
	if err != nil {
		return err
	}
	logger.Debug("Loaded %d turns for session %s", len(history), st.req.SessionID)
	st.history = history
	return nil
}

func (p *Pipeline) retrieve(ctx context.Context, st *run) error {
	results, err := p.retriever.Retrieve(ctx, st.req.Question)
	if err != nil {
		return err
	}
	st.result.Sources = results
	st.result.Context = retrieval.FormatDocs(results)
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, st *run) error {
	if !st.req.Summarize {
		st.result.Summary = NoSummary
		return nil
	}
	reply, err := p.client.Chat(ctx, []models.Message{
		models.UserMessage(fmt.Sprintf(summaryTemplate, st.result.Context)),
	}, p.config)
	if err != nil {
		return err
	}
	st.result.Summary = reply.Content
	return nil
}

func (p *Pipeline) answer(ctx context.Context, st *run) error {
	reply, err := p.client.Chat(ctx, BuildMessages(st.history, st.result.Context, st.req.Question), p.config)
	if err != nil {
		return err
	}
	st.result.Answer = reply.Content
	return nil
}

func (p *Pipeline) persist(st *run) error {
	if st.req.SessionID == "" || p.history == nil {
		return nil
	}
	history := append(st.history,
		models.UserMessage(st.req.Question),
		models.AssistantMessage(st.result.Answer),
	)
	return p.history.Save(st.req.SessionID, history)
}

// BuildMessages assembles the answer prompt: system instructions, prior
// turns, then the context and question.
func BuildMessages(history []models.Message, docs, question string) []models.Message {
	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.SystemMessage(SystemPrompt))
	messages = append(messages, history...)
	messages = append(messages, models.UserMessage(fmt.Sprintf(questionTemplate, docs, question)))
	return messages
}
