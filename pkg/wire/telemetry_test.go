package wire

import "testing"

func TestParseTelemetry(t *testing.T) {
	raw := "mid:-1;x:0;y:0;z:0;pitch:2;roll:-1;yaw:13;bat:87;baro:163.21;h:30;"
	fields, ok := ParseTelemetry(raw)
	if !ok {
		t.Fatal("ParseTelemetry() ok = false, want true")
	}

	if bat, ok := fields.Int("bat"); !ok || bat != 87 {
		t.Errorf("Int(bat) = %d, %v; want 87, true", bat, ok)
	}
	if h, ok := fields.Int("h"); !ok || h != 30 {
		t.Errorf("Int(h) = %d, %v; want 30, true", h, ok)
	}
	if baro, ok := fields.Float("baro"); !ok || baro != 163.21 {
		t.Errorf("Float(baro) = %v, %v; want 163.21, true", baro, ok)
	}
	if pitch, ok := fields.Int("pitch"); !ok || pitch != 2 {
		t.Errorf("Int(pitch) = %d, %v; want 2, true", pitch, ok)
	}
}

func TestParseTelemetryMalformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   int // usable field count
	}{
		{"Empty", "", false, 0},
		{"OKBody", "ok", false, 0},
		{"OKBodyNewline", "ok\r\n", false, 0},
		{"Garbage", "not a telemetry datagram", false, 0},
		{"PartialPairsKept", "bat:87;h;:5;pitch:1", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, ok := ParseTelemetry(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseTelemetry(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if len(fields) != tt.want {
				t.Errorf("field count = %d, want %d", len(fields), tt.want)
			}
		})
	}
}

func TestFieldsMissingKey(t *testing.T) {
	fields := Fields{"bat": "87", "baro": "abc"}
	if _, ok := fields.Int("missing"); ok {
		t.Error("Int(missing) ok = true, want false")
	}
	if _, ok := fields.Float("baro"); ok {
		t.Error("Float on non-numeric value ok = true, want false")
	}
}
