package server

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
)

type stopReq struct {
	done chan struct{}
}

// ChatServer owns the session registry: every live client, plus a secondary
// index from user id to that user's set of clients. Both maps are guarded
// by clientsLock and are never touched outside it.
type ChatServer struct {
	log         *log.Logger
	db          database.MessengerRepository
	stats       stats.StatsProvider
	notifier    *Notifier
	clients     map[*Client]struct{}
	userMap     map[int]map[*Client]struct{}
	clientsLock sync.Mutex
	stop        chan stopReq
	done        chan struct{}
}

func NewChatServer(logger *log.Logger, db database.MessengerRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:     logger,
		db:      db,
		stats:   sp,
		clients: make(map[*Client]struct{}),
		userMap: make(map[int]map[*Client]struct{}),
		stop:    make(chan stopReq),
		done:    make(chan struct{}),
	}
	cs.notifier = newNotifier(logger, db, cs)

	sp.RegisterMetric("NumConnections")
	sp.RegisterMetric("NumOnlineUsers")
	sp.RegisterMetric("NumMessages")
	sp.RegisterMetric("NumNotifications")

	return cs, nil
}

func (cs *ChatServer) Run() {
	go cs.notifier.run()

	req := <-cs.stop

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	cs.notifier.stopNotifier()

	close(cs.done)
	if req.done != nil {
		close(req.done)
	}
}

// RegisterClient admits a session into the registry. Admission never fails;
// the durable session record and the presence write are advisory and only
// logged on error. The first session for a user flips presence to online
// and broadcasts the transition to every other user's sessions.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	first := cs.userMap[c.user.Id] == nil
	if first {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}
	cs.clientsLock.Unlock()

	cs.log.Printf("adding connection %s for %q", c.connectionId, c.user.Username)
	cs.stats.Incr("NumConnections")

	if err := cs.db.CreateSession(c.connectionId, c.user.Id, c.connectedAt); err != nil {
		cs.log.Println("CreateSession:", err)
	}

	if first {
		now := Now()
		if err := cs.db.SetPresence(c.user.Id, true, now); err != nil {
			cs.log.Println("SetPresence:", err)
		}
		cs.stats.Incr("NumOnlineUsers")
		cs.broadcastPresence(c.user.Id, true)
	}
}

// UnregisterClient dismisses a session. Dismissing an unknown client is a
// no-op. Removing a user's last session flips presence to offline and
// broadcasts the transition.
func (cs *ChatServer) UnregisterClient(c *Client) {
	cs.clientsLock.Lock()
	if _, ok := cs.clients[c]; !ok {
		cs.clientsLock.Unlock()
		return
	}

	delete(cs.clients, c)
	last := false
	if userClients, ok := cs.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(cs.userMap, c.user.Id)
			last = true
		}
	}
	cs.clientsLock.Unlock()

	cs.log.Printf("removing connection %s for %q", c.connectionId, c.user.Username)
	cs.stats.Decr("NumConnections")

	if err := cs.db.DeleteSession(c.connectionId); err != nil {
		cs.log.Println("DeleteSession:", err)
	}

	if last {
		now := Now()
		if err := cs.db.SetPresence(c.user.Id, false, now); err != nil {
			cs.log.Println("SetPresence:", err)
		}
		cs.stats.Decr("NumOnlineUsers")
		cs.broadcastPresence(c.user.Id, false)
	}
}

// sessionsFor snapshots the live sessions of a user. An empty slice means
// the user is offline; sends to offline users are persisted, not queued.
func (cs *ChatServer) sessionsFor(userId int) []*Client {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	sessions := make([]*Client, 0, len(cs.userMap[userId]))
	for c := range cs.userMap[userId] {
		sessions = append(sessions, c)
	}

	return sessions
}

// broadcastPresence notifies every live session except the subject's own.
func (cs *ChatServer) broadcastPresence(userId int, online bool) {
	now := Now()
	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: now},
		Notification: &Notification{
			Presence: &Presence{
				UserId:   userId,
				Online:   online,
				LastSeen: now,
			},
		},
	}

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for c := range cs.clients {
		if c.user.Id == userId {
			continue
		}

		c.queueMessage(msg)
	}
}

// pushToUser queues msg on every one of the user's live sessions.
func (cs *ChatServer) pushToUser(userId int, msg *ServerMessage) {
	for _, c := range cs.sessionsFor(userId) {
		c.queueMessage(msg)
	}
}

// PushReadReceipt forwards a read confirmation to the original sender's
// live sessions. Used when the read state changes outside the socket.
func (cs *ChatServer) PushReadReceipt(senderId, messageId int) {
	cs.pushToUser(senderId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Read: &ReadReceipt{MessageId: messageId},
		},
	})
}

// Notify queues a notification for persistence and delivery to the
// account's live sessions.
func (cs *ChatServer) Notify(req *NotificationRequest) {
	cs.notifier.enqueue(req)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
