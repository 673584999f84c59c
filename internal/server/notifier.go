package server

import (
	"log"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

const notifQueueSize = 256

// NotificationRequest describes a notification to persist and push.
type NotificationRequest struct {
	AccountId int
	FromId    int
	FromName  string
	Title     string
	Body      string
	Kind      types.NotificationKind
	RelatedId int
}

// Notifier persists notifications and pushes them to the recipient's live
// sessions, decoupled from the message path so a slow insert never stalls
// delivery of the message itself.
type Notifier struct {
	log   *log.Logger
	db    database.MessengerRepository
	cs    *ChatServer
	queue chan *NotificationRequest
	done  chan struct{}
}

func newNotifier(logger *log.Logger, db database.MessengerRepository, cs *ChatServer) *Notifier {
	return &Notifier{
		log:   logger,
		db:    db,
		cs:    cs,
		queue: make(chan *NotificationRequest, notifQueueSize),
		done:  make(chan struct{}),
	}
}

func (n *Notifier) run() {
	defer close(n.done)

	for req := range n.queue {
		saved, err := n.db.CreateNotification(database.CreateNotificationParams{
			AccountId:     req.AccountId,
			FromAccountId: req.FromId,
			Title:         req.Title,
			Body:          req.Body,
			Kind:          string(req.Kind),
			RelatedId:     req.RelatedId,
		})
		if err != nil {
			n.log.Println("CreateNotification:", err)
			continue
		}

		n.cs.stats.Incr("NumNotifications")
		n.cs.pushToUser(req.AccountId, &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: saved.CreatedAt},
			Notification: &Notification{
				Alert: &types.Notification{
					Id:           saved.Id,
					Title:        saved.Title,
					Body:         saved.Body,
					Kind:         types.NotificationKind(saved.Kind),
					FromUserId:   saved.FromAccountId,
					FromUserName: req.FromName,
					RelatedId:    saved.RelatedId,
					CreatedAt:    saved.CreatedAt,
				},
			},
		})
	}
}

// enqueue hands a notification to the background loop without blocking.
// A full queue drops the notification; the message it describes has
// already been delivered.
func (n *Notifier) enqueue(req *NotificationRequest) {
	select {
	case n.queue <- req:
	default:
		n.log.Println("notifier queue full, dropping notification for account", req.AccountId)
	}
}

func (n *Notifier) stopNotifier() {
	close(n.queue)
	<-n.done
}
