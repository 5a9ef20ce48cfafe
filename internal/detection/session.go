package detection

import (
	"context"
	"strings"

	"github.com/tphakala/leafscan/internal/assistant"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/diagnosis"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/remedy"
	"github.com/tphakala/leafscan/internal/report"
)

// Translate returns the current detection message with the remedy in the
// session language. ok is false when there is nothing to translate or the
// language is English or unset; message then explains why.
func (p *Pipeline) Translate(sess *Session) (message string, ok bool) {
	d, has := sess.Detection()
	if !has || d.Remedy == "" {
		return MessageNoRemedies, false
	}
	if remedy.IsEnglish(sess.Language) {
		return MessageEnglishOrNone, false
	}
	translated := p.translator.Translate(d.Remedy, sess.Language)
	return diagnosis.DiseaseMessage(d.Label, translated), true
}

// Answer is the reply to one chat question.
type Answer struct {
	Reply string
	Turns []conversation.Turn
	// HistoryErr is set when the transcript could not be saved.
	HistoryErr error
}

// Ask appends the question and the assistant's reply to the session and
// saves the transcript on the session's history record.
func (p *Pipeline) Ask(ctx context.Context, sess *Session, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	d, ok := sess.Detection()
	if !ok {
		return Answer{}, ErrChatDisabled
	}

	sess.Append(conversation.SenderUser, question)
	reply := assistant.Answer(question)
	turns := sess.Append(conversation.SenderAssistant, reply)

	ans := Answer{Reply: reply, Turns: turns}
	if p.recorder != nil && d.RecordID != 0 {
		if err := p.recorder.AttachConversation(ctx, d.RecordID, turns); err != nil {
			GetLogger().Warn("transcript save failed",
				logger.String("session_id", sess.ID),
				logger.Uint64("record_id", uint64(d.RecordID)),
				logger.Error(err))
			ans.HistoryErr = persistenceError(err, "attach_conversation")
			if p.observer != nil {
				p.observer.ObserveHistoryError()
			}
		}
	}
	return ans, nil
}

// Report builds the export report for the session's current detection.
func (p *Pipeline) Report(sess *Session) (report.Report, error) {
	d, ok := sess.Detection()
	if !ok {
		return report.Report{}, ErrNoDetection
	}
	return report.Report{
		Disease:    d.Label,
		Confidence: d.Confidence,
		Remedies:   d.Remedy,
		Turns:      sess.Turns(),
		Generated:  p.now(),
	}, nil
}

// Analyze measures the quality of the session's last detected image.
func (p *Pipeline) Analyze(sess *Session) (imageload.Quality, error) {
	d, ok := sess.Detection()
	if !ok || d.ImagePath == "" {
		return imageload.Quality{}, ErrNoImage
	}
	return imageload.Analyze(d.ImagePath)
}
