package provider

import "testing"

func TestEnvOrEmpty(t *testing.T) {
	t.Setenv("TETRA_TEST_ENV_VAR", "value")
	if got := envOrEmpty("TETRA_TEST_ENV_VAR"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
	if got := envOrEmpty("TETRA_TEST_ENV_VAR_UNSET"); got != "" {
		t.Fatalf("expected empty string for unset var, got %q", got)
	}
}

func TestReadAWSCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA_TEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "session")

	ak, sk, st := readAWSCredentials()
	if ak != "AKIA_TEST" || sk != "secret" || st != "session" {
		t.Fatalf("unexpected credentials: %s %s %s", ak, sk, st)
	}
}

func TestWithGRPCInvokeSetsInvoker(t *testing.T) {
	c, err := NewHTTPClient("http://example.invalid", "tok", WithGRPCInvoke("localhost:50051"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.grpc == nil {
		t.Fatal("expected grpc invoker to be set")
	}
}
