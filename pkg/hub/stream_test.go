package hub

import (
	"errors"
	"testing"
)

func TestVoiceStreamOrderingAndResult(t *testing.T) {
	s := NewVoiceStream()
	go func() {
		s.Emit([]byte("a"))
		s.Emit([]byte("b"))
		s.Emit([]byte("c"))
		s.Finish(VoiceResult{Transcript: "hi", Reply: "hello"}, nil)
	}()

	var order []string
	for chunk := range s.Chunks() {
		order = append(order, string(chunk))
	}
	result, err := s.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("chunks out of order: %v", order)
	}
	if result.Transcript != "hi" || result.Reply != "hello" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestVoiceStreamFinishWithError(t *testing.T) {
	s := NewVoiceStream()
	sentinel := errors.New("mid-stream failure")
	go func() {
		s.Emit([]byte("partial"))
		s.Finish(VoiceResult{}, sentinel)
	}()

	var n int
	for range s.Chunks() {
		n++
	}
	_, err := s.Wait()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk before failure, got %d", n)
	}
}

func TestVoiceStreamFinishIdempotent(t *testing.T) {
	s := NewVoiceStream()
	s.Finish(VoiceResult{Reply: "first"}, nil)
	s.Finish(VoiceResult{Reply: "second"}, errors.New("ignored"))
	result, err := s.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result.Reply != "first" {
		t.Fatalf("second Finish overwrote result: %+v", result)
	}
}
