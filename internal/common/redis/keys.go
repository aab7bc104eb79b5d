// internal/common/redis/keys.go
package redis

import "fmt"

// Redis Key Patterns
const (
	AxisStatusPattern = "axis_status:%d"
	EStopStateKey     = "estop_state"
	ScadaLatestKey    = "scada:latest"
)

// KeyGenerator Redis 키 생성기
type KeyGenerator struct{}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// AxisStatus returns the hash key holding the cached status of one axis.
func (k *KeyGenerator) AxisStatus(axis int) string {
	return fmt.Sprintf(AxisStatusPattern, axis)
}

// 전역 키 생성기 인스턴스
var Keys = NewKeyGenerator()

// AxisStatus 축 상태 키 생성
func AxisStatus(axis int) string {
	return Keys.AxisStatus(axis)
}
