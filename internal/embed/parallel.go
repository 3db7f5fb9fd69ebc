package embed

import (
	"context"

	"github.com/ppiankov/originality/internal/worker"
)

// embedJob embeds one text on the worker pool
type embedJob struct {
	index    int
	text     string
	embedder Embedder
}

type embedResult struct {
	index  int
	vector []float32
	err    error
}

func (r *embedResult) GetError() error {
	return r.err
}

func (j *embedJob) Execute(ctx context.Context) worker.Result {
	if err := ctx.Err(); err != nil {
		return &embedResult{index: j.index, err: err}
	}
	v, err := j.embedder.Embed(ctx, j.text)
	return &embedResult{index: j.index, vector: v, err: err}
}

// EmbedAll embeds texts on a pool of workers. Results are index-aligned
// with texts; a failed text has a nil vector and a non-nil error at its index.
func EmbedAll(ctx context.Context, e Embedder, texts []string, workers int) ([][]float32, []error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	if len(texts) == 0 {
		return vectors, errs
	}

	pool := worker.NewPoolContext(ctx, workers)
	pool.Start()
	for i, t := range texts {
		if !pool.Submit(&embedJob{index: i, text: t, embedder: e}) {
			errs[i] = context.Canceled
		}
	}

	for _, r := range pool.Wait() {
		res := r.(*embedResult)
		vectors[res.index] = res.vector
		errs[res.index] = res.err
	}

	// Jobs dropped by a cancelled pool never report back
	for i := range texts {
		if vectors[i] == nil && errs[i] == nil {
			errs[i] = context.Canceled
		}
	}
	return vectors, errs
}
