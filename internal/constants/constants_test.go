package constants

import "testing"

// TestCipherSuiteString tests String method for CipherSuite.
func TestCipherSuiteString(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  string
	}{
		{CipherSuiteAES256GCM, "AES-256-GCM"},
		{CipherSuiteChaCha20Poly1305, "ChaCha20-Poly1305"},
		{CipherSuite(0x9999), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.suite.String()
		if got != tt.want {
			t.Errorf("CipherSuite(%d).String() = %q, want %q", tt.suite, got, tt.want)
		}
	}
}

// TestCipherSuiteIsSupported tests IsSupported method for CipherSuite.
func TestCipherSuiteIsSupported(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  bool
	}{
		{CipherSuiteAES256GCM, true},
		{CipherSuiteChaCha20Poly1305, true},
		{CipherSuite(0x0000), false},
		{CipherSuite(0xFFFF), false},
		{CipherSuite(0x0003), false},
	}

	for _, tt := range tests {
		got := tt.suite.IsSupported()
		if got != tt.want {
			t.Errorf("CipherSuite(%d).IsSupported() = %v, want %v", tt.suite, got, tt.want)
		}
	}
}

// TestConstants verifies constant values using table-driven tests.
func TestConstants(t *testing.T) {
	t.Run("DHGroup", testDHGroup)
	t.Run("AEADParameters", testAEADParameters)
	t.Run("FrameLayout", testFrameLayout)
	t.Run("TimingBudgets", testTimingBudgets)
	t.Run("MessageTypeBytes", testMessageTypeBytes)
}

func testDHGroup(t *testing.T) {
	if len(DHGroup2048Prime) == 0 {
		t.Error("DHGroup2048Prime must not be empty")
	}
	if DHPrimeBits != 2048 {
		t.Errorf("DHPrimeBits = %d, want 2048", DHPrimeBits)
	}
	if DHGenerator != 2 {
		t.Errorf("DHGenerator = %d, want 2", DHGenerator)
	}
}

func testAEADParameters(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"AESNonceSize", AESNonceSize, 12},
		{"AESTagSize", AESTagSize, 16},
		{"ChaCha20NonceSize", ChaCha20NonceSize, 12},
		{"SessionKeySize", SessionKeySize, 32},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func testFrameLayout(t *testing.T) {
	if LengthPrefixSize != 4 {
		t.Errorf("LengthPrefixSize = %d, want 4", LengthPrefixSize)
	}
	if CounterSize != 4 {
		t.Errorf("CounterSize = %d, want 4", CounterSize)
	}
	if FrameOverhead != AESNonceSize+CounterSize+AESTagSize {
		t.Errorf("FrameOverhead = %d, want %d", FrameOverhead, AESNonceSize+CounterSize+AESTagSize)
	}
	if DefaultMaxFrameSize <= 0 {
		t.Error("DefaultMaxFrameSize should be positive")
	}
	if MaxCounter != 1<<32-1 {
		t.Errorf("MaxCounter = %d, want %d", MaxCounter, uint64(1<<32-1))
	}
}

func testTimingBudgets(t *testing.T) {
	if HandshakeDeadlineSeconds != 30 {
		t.Errorf("HandshakeDeadlineSeconds = %d, want 30", HandshakeDeadlineSeconds)
	}
	if ControlReplyDeadlineSeconds != 10 {
		t.Errorf("ControlReplyDeadlineSeconds = %d, want 10", ControlReplyDeadlineSeconds)
	}
}

func testMessageTypeBytes(t *testing.T) {
	clientTypes := map[string]byte{
		"MsgShow":        MsgShow,
		"MsgTalk":        MsgTalk,
		"MsgExit":        MsgExit,
		"MsgAcceptTalk":  MsgAcceptTalk,
		"MsgTalking":     MsgTalking,
		"MsgEndTalk":     MsgEndTalk,
		"MsgRefuseTalk":  MsgRefuseTalk,
		"MsgClientError": MsgClientError,
	}
	seen := make(map[byte]string)
	for name, b := range clientTypes {
		if other, ok := seen[b]; ok {
			t.Errorf("duplicate client->server message byte 0x%02x used by %s and %s", b, name, other)
		}
		seen[b] = name
	}

	if MsgServerOK != 0x00 || MsgServerRequestToTalk != 0x01 || MsgServerEndTalk != 0x02 || MsgServerError != 0xFF {
		t.Error("server->client message type bytes do not match the wire spec")
	}
}

// TestCipherSuiteUniqueness ensures cipher suite IDs are unique.
func TestCipherSuiteUniqueness(t *testing.T) {
	if CipherSuiteAES256GCM == CipherSuiteChaCha20Poly1305 {
		t.Error("Cipher suite IDs must be unique")
	}
}

// TestCipherSuiteIsFIPSApproved tests IsFIPSApproved method for CipherSuite.
func TestCipherSuiteIsFIPSApproved(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  bool
	}{
		{CipherSuiteAES256GCM, true},
		{CipherSuiteChaCha20Poly1305, false},
		{CipherSuite(0x0000), false},
		{CipherSuite(0xFFFF), false},
		{CipherSuite(0x0003), false},
	}

	for _, tt := range tests {
		got := tt.suite.IsFIPSApproved()
		if got != tt.want {
			t.Errorf("CipherSuite(%d).IsFIPSApproved() = %v, want %v", tt.suite, got, tt.want)
		}
	}
}

// TestFIPSApprovedImpliesSupported verifies that all FIPS approved suites are also supported.
func TestFIPSApprovedImpliesSupported(t *testing.T) {
	suites := []CipherSuite{CipherSuiteAES256GCM, CipherSuiteChaCha20Poly1305}
	for _, s := range suites {
		if s.IsFIPSApproved() && !s.IsSupported() {
			t.Errorf("CipherSuite %v is FIPS approved but not supported", s)
		}
	}
}
