package params

import "testing"

func TestNetworkByName(t *testing.T) {
	n, err := NetworkByName("devnet")
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != "devnet" {
		t.Fatalf("name mismatch: %s", n.Name)
	}
	// Presets are copied, never shared.
	n.RPCEndpoint = "http://elsewhere"
	if DevnetNetwork.RPCEndpoint == n.RPCEndpoint {
		t.Fatal("preset mutated through returned copy")
	}
	if _, err := NetworkByName("mainnet-beta"); err == nil {
		t.Fatal("expected error for unknown network")
	}
}

func TestNetworkValidate(t *testing.T) {
	n, _ := NetworkByName("localnet")
	if err := n.Validate(); err != errMissingToken {
		t.Fatalf("want %v, got %v", errMissingToken, err)
	}
	n.TokenProgram = FundingProgramID
	if err := n.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n.RPCEndpoint = ""
	if err := n.Validate(); err != errMissingRPC {
		t.Fatalf("want %v, got %v", errMissingRPC, err)
	}
}

func TestVersionWithCommit(t *testing.T) {
	v := VersionWithCommit("0123456789abcdef", "20260101")
	if v != VersionWithMeta+"-01234567" {
		t.Fatalf("unexpected version %q", v)
	}
}
