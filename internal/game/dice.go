package game

import (
	"math/rand"
	"sync"
	"time"
)

// Dice 전투 판정용 난수 소스. 테스트에서는 시드를 고정해 사용한다.
type Dice struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDice 현재 시각으로 시드된 Dice 생성
func NewDice() *Dice {
	return NewSeededDice(time.Now().UnixNano())
}

// NewSeededDice 고정 시드로 Dice 생성
func NewSeededDice(seed int64) *Dice {
	return &Dice{rnd: rand.New(rand.NewSource(seed))}
}

// Float64 [0, 1) 균등 난수
func (d *Dice) Float64() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rnd.Float64()
}

// Roll [0, 2) 균등 난수. 공격/방어 굴림에 사용.
func (d *Dice) Roll() float64 {
	return d.Float64() * 2.0
}

// Between [lo, hi) 균등 난수
func (d *Dice) Between(lo, hi float64) float64 {
	return lo + d.Float64()*(hi-lo)
}
