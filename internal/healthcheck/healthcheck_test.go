package healthcheck

import (
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func serve(t *testing.T, token string) (*Server, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := New(token)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	return s, lis.Addr().String()
}

func TestServingFollowsModel(t *testing.T) {
	s, addr := serve(t, "")

	if err := Check(t.Context(), addr, ""); err == nil {
		t.Fatal("health check passed before a model was loaded")
	}

	s.SetServing(true)

	if err := Check(t.Context(), addr, ""); err != nil {
		t.Fatalf("health check failed while serving: %v", err)
	}

	s.SetServing(false)

	if err := Check(t.Context(), addr, ""); err == nil {
		t.Fatal("health check passed after the model went away")
	}
}

func TestToken(t *testing.T) {
	s, addr := serve(t, "hunter2")
	s.SetServing(true)

	err := Check(t.Context(), addr, "wrong")
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("wanted Unauthenticated, got %v", err)
	}

	if err := Check(t.Context(), addr, "hunter2"); err != nil {
		t.Errorf("right token rejected: %v", err)
	}
}
