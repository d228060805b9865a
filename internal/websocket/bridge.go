package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/click-arena/click-arena-backend/internal/store"
)

// Bridge 스토어의 변경 이벤트를 구독해 해당 플레이어의 WebSocket으로
// 흘려보낸다. 어떤 서버 인스턴스가 커밋했든 이벤트는 pub/sub을 타고
// 모든 인스턴스의 브리지에 도착한다.
type Bridge struct {
	store  store.Store
	hub    *Hub
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBridge(st store.Store, hub *Hub) *Bridge {
	logger, _ := zap.NewProduction()
	return &Bridge{
		store:  st,
		hub:    hub,
		logger: logger,
	}
}

// Start 이벤트 펌프 시작
func (b *Bridge) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	sub, err := b.store.SubscribeAll(ctx)
	if err != nil {
		cancel()
		return err
	}

	b.logger.Info("Event bridge started")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer sub.Close()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				b.hub.SendToPlayer(ev.PlayerID, ev.Type, GameEventMessage{
					PlayerID: ev.PlayerID,
					MatchID:  ev.MatchID,
				})
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop 이벤트 펌프 중지
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info("Event bridge stopped")
}
