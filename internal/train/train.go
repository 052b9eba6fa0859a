// Package train runs the optimization loop of a colorization network and
// evaluates it on held-out data.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/autodiff"
	"github.com/born-ml/colorize/internal/dataset"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/optim"
	"github.com/born-ml/colorize/internal/tensor"
)

// ErrNoData is returned when a batch source yields no batches.
var ErrNoData = errors.New("no data")

// Model is a trainable network with named state and a train/eval switch.
type Model[B tensor.Backend] interface {
	nn.Module[B]
	nn.Stateful
	nn.ModeSetter
}

// InputChecker is implemented by models that restrict their input shape.
type InputChecker interface {
	CheckInput(shape tensor.Shape) error
}

// BatchSource yields the batches of one epoch per call to Batches.
type BatchSource interface {
	Len() int
	Batches(ctx context.Context) iter.Seq2[*dataset.Batch, error]
}

// Logger receives per-example losses keyed by iteration.
type Logger interface {
	LogTrain(iteration int, loss float64)
	LogEval(iteration int, loss float64)
}

// Options configures Train.
type Options struct {
	Epochs int
	// Logger is optional.
	Logger Logger
	// Progress receives a progress bar per epoch when non-nil.
	Progress io.Writer
}

// Result is the outcome of Train.
type Result struct {
	// BestEvalLoss is the lowest evaluation loss, +Inf if no epoch improved.
	BestEvalLoss float64
	// BestModel is a deep copy of the model state at BestEvalLoss, nil if
	// no epoch improved.
	BestModel map[string]*tensor.RawTensor
	// BestEpoch is the 1-based epoch of BestModel, 0 if none.
	BestEpoch int
	// Iterations is the number of optimizer steps taken.
	Iterations int
}

// Train optimizes net on trainSrc for opts.Epochs epochs. After every epoch
// the model is evaluated on evalSrc, and a strictly lower evaluation loss
// replaces the best snapshot.
//
// Losses are logged per example (criterion output divided by batch size)
// at a running iteration counter; the evaluation loss of an epoch is logged
// at the counter of its last training batch.
func Train[B autodiff.BackwardCapable](
	ctx context.Context,
	net Model[B],
	optimizer optim.Optimizer,
	criterion nn.Criterion[B],
	trainSrc, evalSrc BatchSource,
	backend B,
	opts Options,
) (*Result, error) {
	result := &Result{BestEvalLoss: math.Inf(1)}
	tape := backend.GetTape()

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		net.SetTraining(true)

		var bar *ProgressBar
		if opts.Progress != nil {
			bar = NewProgressBar(opts.Progress, fmt.Sprintf("Epoch %d/%d", epoch, opts.Epochs), trainSrc.Len())
		}

		var runningLoss float64
		batches := 0
		for batch, err := range trainSrc.Batches(ctx) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				return result, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			x, y, err := toTensors(net, batch, backend)
			if err != nil {
				return result, fmt.Errorf("epoch %d: %w", epoch, err)
			}

			optimizer.ZeroGrad()
			tape.Clear()
			tape.StartRecording()
			loss := criterion.Forward(net.Forward(x), y)
			grads := autodiff.Backward(loss, backend)
			tape.StopRecording()
			tape.Clear()
			optimizer.Step(grads)

			iterLoss := float64(loss.Item()) / float64(batch.Size)
			result.Iterations++
			batches++
			runningLoss += iterLoss
			if opts.Logger != nil {
				opts.Logger.LogTrain(result.Iterations, iterLoss)
			}
			log.Lvlf3("epoch %d batch %d: loss %.5g", epoch, batches, iterLoss)
			if bar != nil {
				bar.Update(batches, Metric{"loss", runningLoss / float64(batches)})
			}
		}
		if batches == 0 {
			return result, fmt.Errorf("epoch %d: training source: %w", epoch, ErrNoData)
		}

		evalLoss, err := Evaluate(ctx, net, criterion, evalSrc, backend)
		if err != nil {
			return result, fmt.Errorf("epoch %d: evaluate: %w", epoch, err)
		}
		if opts.Logger != nil {
			opts.Logger.LogEval(result.Iterations, evalLoss)
		}
		if bar != nil {
			bar.Finish(Metric{"eval_loss", evalLoss})
		}

		improved := evalLoss < result.BestEvalLoss
		if improved {
			result.BestEvalLoss = evalLoss
			result.BestModel = nn.CloneStateDict(net.StateDict())
			result.BestEpoch = epoch
		}
		log.Lvlf1("epoch %d/%d: train loss %.5g, eval loss %.5g, best %.5g (epoch %d)",
			epoch, opts.Epochs, runningLoss/float64(batches), evalLoss, result.BestEvalLoss, result.BestEpoch)
	}
	return result, nil
}

// Evaluate returns the mean over the batches of src of the per-example loss.
//
// The model is switched to inference mode and left there; callers that
// continue training switch it back. No operations are recorded.
func Evaluate[B autodiff.BackwardCapable](
	ctx context.Context,
	net Model[B],
	criterion nn.Criterion[B],
	src BatchSource,
	backend B,
) (float64, error) {
	net.SetTraining(false)
	tape := backend.GetTape()
	tape.StopRecording()
	tape.Clear()

	var total float64
	batches := 0
	for batch, err := range src.Batches(ctx) {
		if err != nil {
			return 0, err
		}
		x, y, err := toTensors(net, batch, backend)
		if err != nil {
			return 0, err
		}
		loss := criterion.Forward(net.Forward(x), y)
		total += float64(loss.Item()) / float64(batch.Size)
		batches++
	}
	if batches == 0 {
		return 0, ErrNoData
	}
	return total / float64(batches), nil
}

// toTensors reshapes the batch lightness to [N, 1, H, W] and the labels
// to [N, H, W].
func toTensors[B tensor.Backend](net Model[B], batch *dataset.Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int64, B], error) {
	shape := tensor.Shape{batch.Size, 1, batch.Height, batch.Width}
	if checker, ok := any(net).(InputChecker); ok {
		if err := checker.CheckInput(shape); err != nil {
			return nil, nil, err
		}
	}
	x, err := tensor.FromSlice(batch.L, shape, backend)
	if err != nil {
		return nil, nil, err
	}
	y, err := tensor.FromSlice(batch.Labels, tensor.Shape{batch.Size, batch.Height, batch.Width}, backend)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
