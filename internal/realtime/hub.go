package realtime

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/metrics"
	"context"
	"errors"
	log "log/slog"
	"slices"
	"strconv"
	"sync"
	"time"
)

var (
	errMissingType    = errors.New("frame type is required")
	errMissingPayload = errors.New("frame payload is required")
)

// Peer 一个已认证的连接
type Peer interface {
	ID() string
	UserID() uint64
	// Enqueue 非阻塞投递，缓冲区满或连接已关闭时返回 false
	Enqueue(frame []byte) bool
}

// PresenceStore 持久化在线状态
type PresenceStore interface {
	SetPresence(ctx context.Context, userID uint64, online bool, at time.Time) error
}

// Hub 在线表与房间表，所有连接共享
type Hub struct {
	mu        sync.RWMutex
	peers     map[string]Peer
	users     map[uint64]map[string]Peer
	rooms     map[string]map[string]Peer
	peerRooms map[string]map[string]struct{}

	presence PresenceStore
	// presenceStates 按用户串行化在线状态的持久化与广播
	presenceStates map[uint64]*presenceState
	now            func() time.Time
}

type presenceState struct {
	mu        sync.Mutex
	announced bool
	known     bool
}

func NewHub(presence PresenceStore) *Hub {
	return &Hub{
		peers:     make(map[string]Peer),
		users:     make(map[uint64]map[string]Peer),
		rooms:     make(map[string]map[string]Peer),
		peerRooms: make(map[string]map[string]struct{}),
		presence:  presence,

		presenceStates: make(map[uint64]*presenceState),
		now:            time.Now,
	}
}

// ConversationRoom 会话房间名
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// UserRoom 用户个人房间名
func UserRoom(userID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10)
}

// Register 登记连接并加入个人房间，用户第一个连接上线时广播在线状态
func (h *Hub) Register(ctx context.Context, p Peer) {
	uid := p.UserID()

	h.mu.Lock()
	h.peers[p.ID()] = p
	conns, ok := h.users[uid]
	if !ok {
		conns = make(map[string]Peer)
		h.users[uid] = conns
	}
	conns[p.ID()] = p
	h.joinLocked(p, UserRoom(uid))
	first := len(conns) == 1
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	log.InfoContext(ctx, "realtime peer registered", "first_connection", first)

	if first {
		metrics.OnlineUsers.Inc()
		h.presenceChanged(ctx, uid)
		return
	}
	h.sendTo(p, consts.EventOnlineUserList, h.OnlineUsers())
}

// Unregister 移除连接及其房间，用户最后一个连接断开时广播离线
func (h *Hub) Unregister(ctx context.Context, p Peer) {
	uid := p.UserID()

	h.mu.Lock()
	if _, ok := h.peers[p.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, p.ID())
	for room := range h.peerRooms[p.ID()] {
		h.removeFromRoomLocked(room, p.ID())
	}
	delete(h.peerRooms, p.ID())

	last := false
	if conns, ok := h.users[uid]; ok {
		delete(conns, p.ID())
		if len(conns) == 0 {
			delete(h.users, uid)
			last = true
		}
	}
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
	log.InfoContext(ctx, "realtime peer unregistered", "last_connection", last)

	if last {
		metrics.OnlineUsers.Dec()
		h.presenceChanged(ctx, uid)
	}
}

func (h *Hub) presenceStateOf(uid uint64) *presenceState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.presenceStates[uid]
	if !ok {
		st = &presenceState{}
		h.presenceStates[uid] = st
	}
	return st
}

// presenceChanged 以当前连接表为准持久化并广播，与上次广播相同时跳过
// 同一用户的上下线交错时，后执行者读到的是最终状态
func (h *Hub) presenceChanged(ctx context.Context, uid uint64) {
	st := h.presenceStateOf(uid)
	st.mu.Lock()
	defer st.mu.Unlock()

	online := h.IsOnline(uid)
	if st.known && st.announced == online {
		return
	}

	at := h.now()
	if h.presence != nil {
		if err := h.presence.SetPresence(context.WithoutCancel(ctx), uid, online, at); err != nil {
			log.ErrorContext(ctx, "failed to persist presence", "err", err, "online", online)
		}
	}
	h.Broadcast(consts.EventPresenceChanged, dto.PresenceChangedDTO{
		UserID:   uid,
		IsOnline: online,
		LastSeen: at,
	})
	h.Broadcast(consts.EventOnlineUserList, h.OnlineUsers())
	st.announced = online
	st.known = true
}

// Join 加入会话房间，重复加入无副作用
func (h *Hub) Join(p Peer, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p.ID()]; !ok {
		return
	}
	h.joinLocked(p, ConversationRoom(conversationID))
}

// Leave 离开会话房间，不在房间中时无副作用
func (h *Hub) Leave(p Peer, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := ConversationRoom(conversationID)
	h.removeFromRoomLocked(room, p.ID())
	if rooms, ok := h.peerRooms[p.ID()]; ok {
		delete(rooms, room)
	}
}

// DetachUserFromConversation 将用户的所有连接移出会话房间
func (h *Hub) DetachUserFromConversation(userID uint64, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := ConversationRoom(conversationID)
	for id := range h.users[userID] {
		h.removeFromRoomLocked(room, id)
		if rooms, ok := h.peerRooms[id]; ok {
			delete(rooms, room)
		}
	}
}

func (h *Hub) joinLocked(p Peer, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Peer)
		h.rooms[room] = members
	}
	members[p.ID()] = p

	rooms, ok := h.peerRooms[p.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		h.peerRooms[p.ID()] = rooms
	}
	rooms[room] = struct{}{}
}

func (h *Hub) removeFromRoomLocked(room, peerID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, peerID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom 连接是否在会话房间中
func (h *Hub) InRoom(p Peer, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[ConversationRoom(conversationID)][p.ID()]
	return ok
}

// Lookup 用户当前的所有连接
func (h *Hub) Lookup(userID uint64) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Peer, 0, len(h.users[userID]))
	for _, p := range h.users[userID] {
		out = append(out, p)
	}
	return out
}

func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// OnlineUsers 在线用户 ID，升序
func (h *Hub) OnlineUsers() []uint64 {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.users))
	for uid := range h.users {
		ids = append(ids, uid)
	}
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (h *Hub) roomPeers(room, exceptPeerID string) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	out := make([]Peer, 0, len(members))
	for id, p := range members {
		if id == exceptPeerID {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (h *Hub) allPeers() []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p)
	}
	return out
}

// fanout 编码一次后投递给所有连接，返回成功入队的数量
func (h *Hub) fanout(peers []Peer, event string, payload any) int {
	if len(peers) == 0 {
		return 0
	}
	frame, err := EncodeFrame(event, "", payload)
	if err != nil {
		log.Error("failed to encode frame", "event", event, "err", err)
		return 0
	}
	delivered := 0
	for _, p := range peers {
		if p.Enqueue(frame) {
			delivered++
			continue
		}
		metrics.DroppedFrames.Inc()
	}
	metrics.OutboundFrames.WithLabelValues(event).Add(float64(delivered))
	return delivered
}

func (h *Hub) sendTo(p Peer, event string, payload any) bool {
	return h.fanout([]Peer{p}, event, payload) == 1
}

// EmitToUser 发送到用户个人房间，返回成功入队的连接数
func (h *Hub) EmitToUser(userID uint64, event string, payload any) int {
	return h.fanout(h.roomPeers(UserRoom(userID), ""), event, payload)
}

// EmitToConversation 发送到会话房间，exceptPeerID 非空时跳过该连接
func (h *Hub) EmitToConversation(conversationID, event string, payload any, exceptPeerID string) int {
	return h.fanout(h.roomPeers(ConversationRoom(conversationID), exceptPeerID), event, payload)
}

// Broadcast 发送到所有连接
func (h *Hub) Broadcast(event string, payload any) int {
	return h.fanout(h.allPeers(), event, payload)
}

// Reply 发送到单个连接，附带请求 ID
func (h *Hub) Reply(p Peer, event, requestID string, payload any) bool {
	frame, err := EncodeFrame(event, requestID, payload)
	if err != nil {
		log.Error("failed to encode frame", "event", event, "err", err)
		return false
	}
	if !p.Enqueue(frame) {
		metrics.DroppedFrames.Inc()
		return false
	}
	metrics.OutboundFrames.WithLabelValues(event).Inc()
	return true
}
