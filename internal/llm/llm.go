package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const SystemPrompt = `You are a regulatory assistant answering questions about a collection of regulation documents.
Answer using ONLY the document excerpts provided with the question.
If the answer is not in the excerpts, say so clearly and do not guess.
Always cite the document title(s) you used.
Be concise and precise.`

// Excerpt is one window of page text handed to the model.
type Excerpt struct {
	Title   string
	Locator string
	Text    string
}

type Request struct {
	Query    string
	Excerpts []Excerpt
}

// Stream yields answer tokens. Recv returns io.EOF once the answer is
// complete; any other error means generation failed.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}

// GenerationError reports a failure of the language model, either when the
// request is opened or while tokens are streaming.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// BuildPrompt renders the user message: the question followed by the
// numbered excerpts.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(req.Query)
	b.WriteString("\n\nRelevant document excerpts:\n")

	if len(req.Excerpts) == 0 {
		b.WriteString("No relevant documents found.")
		return b.String()
	}

	for i, ex := range req.Excerpts {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		title := ex.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "[%d] **%s**\n%s", i+1, title, ex.Text)
	}
	return b.String()
}

// Collect drains a stream into one string and closes it. On failure no
// partial text is returned.
func Collect(stream Stream) (string, error) {
	defer stream.Close()

	var b strings.Builder
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(token)
	}
}

// TextStream replays fixed chunks. It backs answers that need no model.
type TextStream struct {
	chunks []string
	next   int
}

func NewTextStream(chunks ...string) *TextStream {
	return &TextStream{chunks: chunks}
}

func (s *TextStream) Recv() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *TextStream) Close() error {
	s.next = len(s.chunks)
	return nil
}
