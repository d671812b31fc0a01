package msdc

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
)

func Test_clockDivider(t *testing.T) {
	tests := []struct {
		name string
		kHz  uint32
		want uint32
	}{
		{name: "identification clock", kHz: 240, want: 28},
		{name: "400 kHz", kHz: 400, want: 17},
		{name: "operating clock", kHz: 13000, want: 0},
		{name: "reference clock", kHz: 26000, want: 0},
		{name: "above the reference", kHz: 50000, want: 0},
		{name: "div 3", kHz: 8667, want: 1},
		{name: "slowest", kHz: 26, want: 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clockDivider(tt.kHz); got != tt.want {
				t.Errorf("clockDivider(%d) = %v, want %v", tt.kHz, got, tt.want)
			}
		})
	}
}

func TestSession_setClock(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// A single register backing MSDC_CFG.
	cfg := uint32(CFGMSDC | CFGVDDPD | 0x3<<CFGClkSrcPos | 0xFF<<CFGSclkfPos)
	regs := NewMockRegisters(mockCtrl)
	regs.EXPECT().Read32(uint32(RegCFG)).DoAndReturn(func(uint32) uint32 { return cfg }).AnyTimes()

	var writes []uint32
	regs.EXPECT().Write32(uint32(RegCFG), gomock.Any()).Do(func(_ uint32, v uint32) {
		cfg = v
		writes = append(writes, v)
	}).Times(3)

	var delays []time.Duration
	s := New(nil, WithDelayer(DelayFunc(func(d time.Duration) { delays = append(delays, d) })))
	s.setClock(regs, 240)

	base := uint32(CFGMSDC | CFGVDDPD | 2<<CFGClkSrcPos | 28<<CFGSclkfPos)
	want := []uint32{base, base | CFGSCKON, base}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d = 0x%08X, want 0x%08X", i, writes[i], want[i])
		}
	}
	if len(delays) != 1 || delays[0] != 200*time.Microsecond {
		t.Errorf("delays = %v, want one SCKON pulse of 200µs", delays)
	}
}

func TestSession_setClock_Zero(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// No register access at all.
	regs := NewMockRegisters(mockCtrl)
	New(nil).setClock(regs, 0)
}
