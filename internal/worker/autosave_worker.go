package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/authority"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	ws "github.com/stemsi/exstem-runner/internal/websocket"
)

// Answer is one selection to mirror to the authority.
type Answer struct {
	ExamID     string
	QuestionID string
	Label      model.OptionLabel
}

// errRejected marks a reply the authority will never accept on retry.
var errRejected = errors.New("autosave rejected")

// AutosaveWorker mirrors locally saved answers to the authority's stream.
// The local store stays authoritative; the mirror never submits.
type AutosaveWorker struct {
	baseURL    string
	credential *authority.Credential
	queue      chan Answer
	log        zerolog.Logger

	retryDelay time.Duration
	ackWait    time.Duration
	dial       func(ctx context.Context, rawURL string) (*websocket.Conn, error)

	conn     *websocket.Conn
	connExam string
	pending  *Answer
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(baseURL string, credential *authority.Credential, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		baseURL:    baseURL,
		credential: credential,
		queue:      make(chan Answer, config.WorkerKey.AutosaveQueueSize),
		log:        log.With().Str("component", "autosave_worker").Logger(),
		retryDelay: config.WorkerKey.AutosaveRetryDelay,
		ackWait:    config.WorkerKey.AutosaveDialWait,
		dial:       ws.Dial,
	}
}

// Push queues an answer without blocking. It reports false when the queue
// is full and the answer was dropped from the mirror.
func (w *AutosaveWorker) Push(a Answer) bool {
	select {
	case w.queue <- a:
		return true
	default:
		w.log.Warn().Str("q_id", a.QuestionID).Msg("Autosave queue full, dropping")
		return false
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	defer w.closeConn()

	for {
		if w.pending == nil {
			select {
			case <-ctx.Done():
				w.stop()
				return
			case a := <-w.queue:
				w.pending = &a
			}
		}

		if err := w.deliver(ctx, *w.pending); err != nil {
			if errors.Is(err, errRejected) {
				w.log.Warn().Err(err).Str("q_id", w.pending.QuestionID).Msg("Autosave rejected, skipping")
				w.pending = nil
				continue
			}
			w.log.Error().Err(err).Str("q_id", w.pending.QuestionID).Dur("retry_in", w.retryDelay).Msg("Autosave failed, retrying")
			w.closeConn()
			select {
			case <-ctx.Done():
				w.stop()
				return
			case <-time.After(w.retryDelay):
			}
			continue
		}
		w.pending = nil
	}
}

func (w *AutosaveWorker) stop() {
	w.log.Info().Msg("Worker stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), config.WorkerKey.AutosaveDialWait)
	defer cancel()
	w.drain(ctx)
	w.log.Info().Msg("Worker stopped")
}

// drain makes one delivery attempt for everything still queued.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		if w.pending == nil {
			select {
			case a := <-w.queue:
				w.pending = &a
			default:
			}
		}
		if w.pending == nil {
			break
		}
		if err := w.deliver(ctx, *w.pending); err != nil && !errors.Is(err, errRejected) {
			w.log.Error().Err(err).Int("left", len(w.queue)+1).Msg("Drain stopped")
			break
		}
		w.pending = nil
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (w *AutosaveWorker) deliver(ctx context.Context, a Answer) error {
	if err := w.ensureConn(ctx, a.ExamID); err != nil {
		return err
	}

	msgID := uuid.New().String()
	req := ws.AutosaveRequest{Action: ws.ActionAutosave, MsgID: msgID, QID: a.QuestionID, Answer: string(a.Label)}
	if err := ws.WriteTyped(w.conn, req); err != nil {
		return fmt.Errorf("write autosave: %w", err)
	}

	for {
		var reply ws.Reply
		if err := ws.ReadJSONWithin(w.conn, &reply, w.ackWait); err != nil {
			return fmt.Errorf("read ack: %w", err)
		}
		if reply.MsgID != msgID {
			continue
		}
		if reply.Event == ws.EventError {
			return fmt.Errorf("%w: %s", errRejected, reply.Error)
		}
		w.log.Debug().Str("q_id", a.QuestionID).Msg("Autosave mirrored")
		return nil
	}
}

func (w *AutosaveWorker) ensureConn(ctx context.Context, examID string) error {
	if w.conn != nil && w.connExam == examID {
		return nil
	}
	w.closeConn()

	token, err := w.credential.Token()
	if err != nil {
		return err
	}
	rawURL, err := ws.StreamURL(w.baseURL, examID, token)
	if err != nil {
		return err
	}
	conn, err := w.dial(ctx, rawURL)
	if err != nil {
		return err
	}
	w.conn, w.connExam = conn, examID
	return nil
}

func (w *AutosaveWorker) closeConn() {
	if w.conn == nil {
		return
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.conn.Close()
	w.conn, w.connExam = nil, ""
}
