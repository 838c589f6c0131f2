package bridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptbridge/internal/comfy"
)

// Workflow is the opaque ComfyUI prompt graph forwarded to the worker.
type Workflow = map[string]any

// Worker is the subset of the ComfyUI API the bridge drives.
type Worker interface {
	ArtifactSource
	Connect(ctx context.Context, clientID string) (comfy.Channel, error)
	Submit(ctx context.Context, workflow map[string]any, clientID string) (*comfy.SubmitResponse, error)
}

type Options struct {
	// WaitTimeout bounds how long a run waits for the worker; zero waits
	// until ctx is done.
	WaitTimeout time.Duration
	NewClientID func() string
	Observer    Observer
}

// Bridge runs workflows on a worker and materializes their images.
type Bridge struct {
	worker       Worker
	materializer *Materializer
	waitTimeout  time.Duration
	newClientID  func() string
	observer     Observer
}

func New(worker Worker, materializer *Materializer, opts Options) *Bridge {
	newID := opts.NewClientID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Bridge{
		worker:       worker,
		materializer: materializer,
		waitTimeout:  opts.WaitTimeout,
		newClientID:  newID,
		observer:     opts.Observer,
	}
}

// Result is a finished run.
type Result struct {
	ClientID string
	PromptID string
	URLs     []string
	States   []State
}

// Run submits workflow, waits for it to finish and returns one URL per
// produced image, in node order then output order. The notification
// channel is closed exactly once before Run returns.
func (b *Bridge) Run(ctx context.Context, workflow Workflow, baseURL *url.URL) (*Result, error) {
	if workflow == nil {
		return nil, InvalidRequest("workflow is required")
	}
	run := newRun(b.newClientID(), b.observe)
	started := time.Now()

	urls, err := b.execute(ctx, run, workflow, baseURL)
	if err != nil {
		run.fail(err)
		log.Printf("bridge: run %s failed after %s: %v", run.ClientID, time.Since(started).Round(time.Millisecond), err)
		return nil, err
	}
	log.Printf("bridge: run %s (prompt %s) done in %s, %d images", run.ClientID, run.PromptID(), time.Since(started).Round(time.Millisecond), len(urls))
	return &Result{
		ClientID: run.ClientID,
		PromptID: run.PromptID(),
		URLs:     urls,
		States:   run.History(),
	}, nil
}

func (b *Bridge) execute(ctx context.Context, run *Run, workflow Workflow, baseURL *url.URL) ([]string, error) {
	ch, err := b.worker.Connect(ctx, run.ClientID)
	if err != nil {
		return nil, newError(KindChannel, "connect", err)
	}
	closeChannel := sync.OnceValue(ch.Close)
	defer closeChannel()

	submitted, err := b.worker.Submit(ctx, workflow, run.ClientID)
	if err != nil {
		return nil, newError(KindSubmission, "submit", err)
	}
	run.setPromptID(submitted.PromptID)
	if err := run.advance(StateSubmitted); err != nil {
		return nil, err
	}

	if err := run.advance(StateWaiting); err != nil {
		return nil, err
	}
	if err := b.await(ctx, ch, submitted.PromptID); err != nil {
		return nil, err
	}
	if err := closeChannel(); err != nil {
		log.Printf("bridge: run %s close channel: %v", run.ClientID, err)
	}

	if err := run.advance(StateFetching); err != nil {
		return nil, err
	}
	steps, err := FetchArtifacts(ctx, b.worker, submitted.PromptID)
	if err != nil {
		return nil, err
	}

	if err := run.advance(StateMaterializing); err != nil {
		return nil, err
	}
	urls := make([]string, 0, Count(steps))
	for _, step := range steps {
		for i, blob := range step.Blobs {
			u, err := b.materializer.Materialize(ctx, stepName(step.StepID, i), blob, run.ClientID, baseURL)
			if err != nil {
				return nil, err
			}
			urls = append(urls, u)
		}
	}

	if err := run.advance(StateDone); err != nil {
		return nil, err
	}
	return urls, nil
}

func (b *Bridge) await(ctx context.Context, ch comfy.Channel, promptID string) error {
	if b.waitTimeout <= 0 {
		return AwaitCompletion(ctx, ch, promptID)
	}
	waitCtx, cancel := context.WithTimeout(ctx, b.waitTimeout)
	defer cancel()
	return AwaitCompletion(waitCtx, ch, promptID)
}

func (b *Bridge) observe(run *Run, from, to State) {
	log.Printf("bridge: run %s %s -> %s", run.ClientID, from, to)
	if b.observer != nil {
		b.observer(run, from, to)
	}
}

// stepName keeps the node id for a node's first image and suffixes the
// index for the following ones, so every image gets its own file.
func stepName(stepID string, index int) string {
	if index == 0 {
		return stepID
	}
	return fmt.Sprintf("%s-%d", stepID, index)
}
