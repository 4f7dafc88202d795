package responder

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/threads"
)

// Responder posts replies back to the platform.
type Responder struct {
	api threads.API
	log logrus.FieldLogger
}

func New(api threads.API, log logrus.FieldLogger) *Responder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Responder{api: api, log: log}
}

// PostReply submits text as a reply to postID. Failures are returned as
// *threads.TransportError and never swallowed.
func (r *Responder) PostReply(ctx context.Context, postID, text string) error {
	if postID == "" {
		return &threads.TransportError{Op: "submit reply", Err: errors.New("empty post id")}
	}
	if err := r.api.SubmitReply(ctx, postID, text); err != nil {
		r.log.WithField("post_id", postID).WithError(err).Error("error posting reply")
		if threads.IsTransport(err) {
			return err
		}
		return &threads.TransportError{Op: "submit reply", Err: err}
	}
	return nil
}
