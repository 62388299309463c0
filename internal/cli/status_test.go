package cli

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseTxHash(t *testing.T) {
	valid := "0x" + "ab00000000000000000000000000000000000000000000000000000000000001"

	tests := []struct {
		name    string
		in      string
		want    common.Hash
		wantErr bool
	}{
		{"empty", "", common.Hash{}, false},
		{"valid", valid, common.HexToHash(valid), false},
		{"short", "0x1234", common.Hash{}, true},
		{"long", valid + "00", common.Hash{}, true},
		{"no prefix", valid[2:], common.Hash{}, true},
		{"not hex", "0x" + "zz00000000000000000000000000000000000000000000000000000000000001", common.Hash{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTxHash(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("hash = %s, want %s", got.Hex(), tt.want.Hex())
			}
		})
	}
}
