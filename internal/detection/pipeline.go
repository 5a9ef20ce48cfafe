package detection

import (
	"context"
	"fmt"

	"github.com/tphakala/leafscan/internal/assistant"
	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/diagnosis"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/logger"
)

// Detect runs the pipeline on the image at imagePath. sess may be nil for
// one-off detections; without a session nothing is recorded and chat is
// unavailable.
func (p *Pipeline) Detect(ctx context.Context, sess *Session, imagePath string) Result {
	start := p.now()
	res := p.detect(ctx, sess, imagePath)
	res.Duration = p.now().Sub(start)

	if p.observer != nil {
		outcome := "error"
		if res.OK() {
			outcome = res.Outcome.Kind.String()
		}
		p.observer.ObserveDetection(outcome, res.Duration)
		if res.HistoryErr != nil {
			p.observer.ObserveHistoryError()
		}
	}
	return res
}

func (p *Pipeline) detect(ctx context.Context, sess *Session, imagePath string) Result {
	log := GetLogger()
	res := Result{ImagePath: imagePath}

	if imagePath == "" {
		res.Message = MessageNoImage
		res.Err = ErrNoImage
		return res
	}
	if err := ctx.Err(); err != nil {
		return cancelled(res, err)
	}

	tensor, err := imageload.Load(imagePath)
	if err != nil {
		log.Warn("image load failed", logger.String("path", imagePath), logger.Error(err))
		res.Message = "Could not load image: " + err.Error()
		res.Err = err
		return res
	}
	if err := ctx.Err(); err != nil {
		return cancelled(res, err)
	}

	probs, err := p.predictor.Predict(tensor)
	if err != nil {
		res.Err = err
		if errors.Is(err, classifier.ErrNoModelLoaded) {
			res.Message = MessageNoModel
		} else {
			res.Message = "Prediction error: " + err.Error()
			log.Error("prediction failed", logger.String("path", imagePath), logger.Error(err))
		}
		return res
	}
	res.Probabilities = probs

	pred, err := diagnosis.Resolve(probs, p.labels)
	if err != nil {
		res.Message = "Prediction error: " + err.Error()
		res.Err = err
		return res
	}

	out := diagnosis.Decide(pred, p.remedies)
	res.Outcome = out
	res.Message = out.Message
	log.Info("detection complete",
		logger.String("label", pred.Label),
		logger.Float32("confidence", pred.Confidence),
		logger.String("kind", out.Kind.String()))

	if sess != nil {
		if out.Kind == diagnosis.Diseased {
			sess.SetDetection(conversation.Detection{
				Label:      pred.Label,
				Confidence: pred.Confidence,
				Remedy:     out.Remedy,
				ImagePath:  imagePath,
				At:         p.now(),
			})
		} else {
			sess.ClearDetection()
		}

		res.RecordID, res.HistoryErr = p.record(ctx, sess, out, imagePath)
		if res.RecordID != 0 {
			sess.SetRecordID(res.RecordID)
		}

		if out.CanChat {
			sess.Append(conversation.SenderAssistant, assistant.Greeting)
		}
	}

	p.publish(ctx, sess, res)
	return res
}

// record writes the history row. The transcript saved here is whatever the
// session holds before chat opens.
func (p *Pipeline) record(ctx context.Context, sess *Session, out diagnosis.Outcome, imagePath string) (uint, error) {
	if p.recorder == nil || sess.User == "" {
		return 0, nil
	}

	data, err := conversation.Encode(sess.Turns())
	if err != nil {
		return 0, persistenceError(err, "encode_conversation")
	}
	rec := &history.Record{
		UserID:       sess.User,
		Label:        out.Prediction.Label,
		Advice:       out.Advice,
		ImagePath:    imagePath,
		Conversation: data,
		SessionID:    sess.ID,
	}
	if err := p.recorder.Save(ctx, rec); err != nil {
		GetLogger().Warn("history save failed, detection result kept",
			logger.String("session_id", sess.ID),
			logger.Error(err))
		return 0, persistenceError(err, "save")
	}
	return rec.ID, nil
}

func (p *Pipeline) publish(ctx context.Context, sess *Session, res Result) {
	if len(p.publishers) == 0 {
		return
	}
	ev := Event{
		Label:      res.Outcome.Prediction.Label,
		Kind:       res.Outcome.Kind,
		Confidence: res.Outcome.Prediction.Confidence,
		RecordID:   res.RecordID,
		ImagePath:  res.ImagePath,
		Time:       p.now(),
	}
	if sess != nil {
		ev.SessionID = sess.ID
		ev.User = sess.User
	}
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, ev); err != nil {
			GetLogger().Warn("detection event publish failed", logger.Error(err))
		}
	}
}

func cancelled(res Result, err error) Result {
	res.Message = MessageCancelled
	res.Err = errors.New(err).
		Component("detection").
		Category(errors.CategoryCancellation).
		Build()
	return res
}

// persistenceError makes sure err matches history.ErrPersistence whatever
// Recorder produced it.
func persistenceError(err error, operation string) error {
	if errors.Is(err, history.ErrPersistence) {
		return err
	}
	return errors.New(fmt.Errorf("%w: %s: %w", history.ErrPersistence, operation, err)).
		Component("detection").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
