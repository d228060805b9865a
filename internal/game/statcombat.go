package game

import (
	"fmt"
	"math"
)

// RoundResult 한 라운드의 공격/반격 결과
type RoundResult struct {
	Damage         int // 방어자가 입은 피해
	CounterDamage  int // 반격으로 공격자가 입은 피해
	AttackerHealth int
	DefenderHealth int
	DefenderDown   bool
	AttackerDown   bool
	Events         []string
}

// ResolveCombatRound 한 라운드의 스탯 전투 판정.
// 공격/방어 굴림은 각각 [0, 2)에서 독립적으로 뽑는다. 유효 공격이 유효 방어를
// 넘으면 피해가 들어가고, 방어자가 쓰러지지 않으면 같은 라운드에 동일한
// 규칙으로 반격한다. 체력은 0 밑으로 내려가지 않는다.
func ResolveCombatRound(attackerPower, defenderPower int64, attackerHealth, defenderHealth int, dice *Dice) RoundResult {
	res := RoundResult{
		AttackerHealth: attackerHealth,
		DefenderHealth: defenderHealth,
	}

	res.Damage, res.Events = resolveBout(attackerPower, defenderPower, dice, res.Events, "attack")
	res.DefenderHealth = clampHealth(res.DefenderHealth - res.Damage)
	if res.DefenderHealth == 0 {
		res.DefenderDown = true
		res.Events = append(res.Events, "defender down")
		return res
	}

	res.CounterDamage, res.Events = resolveBout(defenderPower, attackerPower, dice, res.Events, "counter")
	res.AttackerHealth = clampHealth(res.AttackerHealth - res.CounterDamage)
	if res.AttackerHealth == 0 {
		res.AttackerDown = true
		res.Events = append(res.Events, "attacker down")
	}

	return res
}

// resolveBout 단일 타격 판정. 빗나가면 피해 0.
func resolveBout(attackPower, defendPower int64, dice *Dice, events []string, kind string) (int, []string) {
	attackRoll := dice.Roll()
	defenseRoll := dice.Roll()

	effAttack := float64(attackPower) * attackRoll
	effDefense := float64(defendPower) * defenseRoll

	if effAttack <= effDefense {
		return 0, append(events, fmt.Sprintf("%s blocked", kind))
	}

	damage := int(math.Floor(effAttack * dice.Between(0.2, 0.4)))
	return damage, append(events, fmt.Sprintf("%s hit for %d", kind, damage))
}

// VictoryPowerGain 승리 시 파워 획득량: floor(loserPower * g), g ∈ [0.05, 0.15)
func VictoryPowerGain(loserPower int64, dice *Dice) int64 {
	return int64(math.Floor(float64(loserPower) * dice.Between(0.05, 0.15)))
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	return h
}
