package msdc

import (
	"errors"
	"testing"
)

func TestParseCSD(t *testing.T) {
	tests := []struct {
		name    string
		resp    Response
		want    CSD
		wantErr error
	}{
		{
			name: "v1 1 GiB",
			resp: Response{3: 0 << 30, 2: 9<<16 | 0x3FF, 1: 3<<30 | 7<<15},
			want: CSD{Structure: 0, CSize: 4095, CSizeMult: 7, ReadBlLen: 9, Capacity: 1 << 30},
		},
		{
			name: "v1 2 GiB with 1024 byte blocks",
			resp: Response{2: 10<<16 | 0x3FF, 1: 3<<30 | 7<<15},
			want: CSD{Structure: 0, CSize: 4095, CSizeMult: 7, ReadBlLen: 10, Capacity: 2 << 30},
		},
		{
			name: "v1 smallest",
			resp: Response{2: 9 << 16},
			want: CSD{Structure: 0, CSize: 0, CSizeMult: 0, ReadBlLen: 9, Capacity: 4 * 512},
		},
		{
			name: "v2 8 GiB",
			resp: Response{3: 1 << 30, 1: 0x3FFF << 16},
			want: CSD{Structure: 1, CSize: 0x3FFF, Capacity: 8 << 30},
		},
		{
			name: "v2 maximum C_SIZE",
			resp: Response{3: 1 << 30, 2: 0x3F, 1: 0xFFFF << 16},
			want: CSD{Structure: 1, CSize: 0x3FFFFF, Capacity: 2 << 40},
		},
		{
			name: "v2 ignores unrelated bits",
			resp: Response{3: 1<<30 | 0x00FFFFFF, 2: 0xFFFFFFC0, 1: 0x0001FFFF, 0: 0xFFFFFFFF},
			want: CSD{Structure: 1, CSize: 1, Capacity: 1 << 20},
		},
		{
			name:    "structure 2",
			resp:    Response{3: 2 << 30},
			want:    CSD{Structure: 2},
			wantErr: ErrUnsupportedMedia,
		},
		{
			name:    "structure 3",
			resp:    Response{3: 3 << 30},
			want:    CSD{Structure: 3},
			wantErr: ErrUnsupportedMedia,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSD(tt.resp)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseCSD() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCSD() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
