package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/madjin/crypto-superchat/utils"
)

// Channel 订阅频道
type Channel string

const (
	Overlay   Channel = "overlay"
	Dashboard Channel = "dashboard"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Conn 订阅连接，由传输层实现（websocket 等）
type Conn interface {
	Send(msg interface{}) error
}

// SnapshotFunc dashboard 订阅时下发的初始消息
type SnapshotFunc func(ctx context.Context) (interface{}, error)

// subscriber 订阅中的连接。初始消息发出之前 ready 为 false，期间推送的消息先进 backlog。
type subscriber struct {
	conn    Conn
	mu      sync.Mutex
	ready   bool
	backlog []interface{}
}

// Hub 维护 overlay 和 dashboard 两组订阅连接
type Hub struct {
	mu       sync.RWMutex
	subs     map[Channel]map[Conn]*subscriber
	snapshot SnapshotFunc
	pool     *ants.Pool
	log      *utils.Logger
}

// New poolSize 为推送使用的 goroutine 池大小
func New(poolSize int, log *utils.Logger) (*Hub, error) {
	if poolSize <= 0 {
		poolSize = 64
	}
	log = log.OrDefault().Named("hub")
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(p interface{}) {
		log.Error("推送任务 panic: %v", p)
	}))
	if err != nil {
		return nil, err
	}
	return &Hub{
		subs: map[Channel]map[Conn]*subscriber{
			Overlay:   {},
			Dashboard: {},
		},
		pool: pool,
		log:  log,
	}, nil
}

// SetSnapshot 设置 dashboard 初始快照来源
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Subscribe 注册连接，先按顺序下发 greeting，dashboard 频道再下发快照，下发失败则移除连接并返回错误。
// 初始消息发出之前的推送会暂存，在初始消息之后按原顺序补发。
func (h *Hub) Subscribe(ctx context.Context, ch Channel, conn Conn, greeting ...interface{}) error {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	set, ok := h.subs[ch]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownChannel
	}
	set[conn] = sub
	snapshot := h.snapshot
	n := len(set)
	h.mu.Unlock()

	subscribersGauge.WithLabelValues(string(ch)).Set(float64(n))
	h.log.Info("%s 连接加入，当前 %d 个", ch, n)

	initial := append([]interface{}(nil), greeting...)
	if ch == Dashboard && snapshot != nil {
		// 快照在锁外生成，生成期间的推送进入 backlog
		msg, err := snapshot(ctx)
		if err != nil {
			h.Unsubscribe(ch, conn)
			return err
		}
		initial = append(initial, msg)
	}

	if err := sub.activate(initial); err != nil {
		sendFailures.WithLabelValues(string(ch)).Inc()
		h.Unsubscribe(ch, conn)
		return err
	}
	return nil
}

// activate 发送初始消息和 backlog，之后的推送直接发送
func (s *subscriber) activate(initial []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range initial {
		if err := s.conn.Send(msg); err != nil {
			return err
		}
	}
	for _, msg := range s.backlog {
		if err := s.conn.Send(msg); err != nil {
			return err
		}
	}
	s.backlog = nil
	s.ready = true
	return nil
}

// send 未就绪时暂存消息，返回 false 表示只是暂存
func (s *subscriber) send(msg interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		s.backlog = append(s.backlog, msg)
		return false, nil
	}
	return true, s.conn.Send(msg)
}

// Unsubscribe 移除连接，连接不存在时忽略
func (h *Hub) Unsubscribe(ch Channel, conn Conn) {
	h.mu.Lock()
	set, ok := h.subs[ch]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := set[conn]; !exists {
		h.mu.Unlock()
		return
	}
	delete(set, conn)
	n := len(set)
	h.mu.Unlock()

	subscribersGauge.WithLabelValues(string(ch)).Set(float64(n))
	h.log.Info("%s 连接移除，剩余 %d 个", ch, n)
}

// Publish 向频道内所有连接推送消息。单个连接发送失败只移除该连接，不影响其他连接，也不向调用方返回错误。
func (h *Hub) Publish(ch Channel, msg interface{}) {
	h.mu.RLock()
	set := h.subs[ch]
	subs := make([]*subscriber, 0, len(set))
	for _, s := range set {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		s := s
		wg.Add(1)
		task := func() {
			defer wg.Done()
			h.deliver(ch, s, msg)
		}
		if err := h.pool.Submit(task); err != nil {
			// 池已关闭或过载时直接在当前 goroutine 发送
			task()
		}
	}
	wg.Wait()
}

func (h *Hub) deliver(ch Channel, s *subscriber, msg interface{}) {
	sent, err := s.send(msg)
	if err != nil {
		sendFailures.WithLabelValues(string(ch)).Inc()
		h.log.Warn("%s 推送失败，移除连接: %v", ch, err)
		h.Unsubscribe(ch, s.conn)
		return
	}
	if !sent {
		return
	}
	messagesSent.WithLabelValues(string(ch)).Inc()
}

// Count 频道当前连接数
func (h *Hub) Count(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ch])
}

// Close 释放推送池
func (h *Hub) Close() {
	h.pool.Release()
}
