package patch

import (
	"bytes"
	"crypto/sha1"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
	"github.com/tridge-sync/tsync/pkg/delta"
	"github.com/tridge-sync/tsync/pkg/weakhash"
)

// stubResolver resolves every KNOWN lookup from a fixed in-memory map,
// keyed by strong hash, bypassing the filesystem entirely.
type stubResolver struct {
	byStrong map[block.Strong][]byte
}

func (s *stubResolver) ResolveKnown(weak uint32, strong block.Strong) ([]byte, error) {
	data, ok := s.byStrong[strong]
	if !ok {
		return nil, errors.New("block not found")
	}
	return data, nil
}

func TestApplyFileLiteralOnly(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	instructions := []delta.Instruction{
		{Op: delta.OpLiteral, Literal: []byte("hello ")},
		{Op: delta.OpLiteral, Literal: []byte("world")},
		{Op: delta.OpEndFile, TotalSize: 11},
	}

	outputPath := filepath.Join(dir, "out.txt")
	if err := applier.ApplyFile(0, outputPath, instructions, nil); err != nil {
		t.Fatal("apply failed:", err)
	}

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("wrong output content: %q", got)
	}
}

func TestApplyFileKnownResolution(t *testing.T) {
	dir := t.TempDir()
	knownData := []byte("KNOWNBLOCK")
	strong := block.Hash(knownData)
	resolver := &stubResolver{byStrong: map[block.Strong][]byte{strong: knownData}}
	applier := NewApplier(resolver)

	instructions := []delta.Instruction{
		{Op: delta.OpKnown, Weak: weakhash.Init(knownData).Sum(), Strong: strong},
		{Op: delta.OpEndFile, TotalSize: int64(len(knownData))},
	}

	outputPath := filepath.Join(dir, "out.txt")
	if err := applier.ApplyFile(0, outputPath, instructions, nil); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(outputPath)
	if !bytes.Equal(got, knownData) {
		t.Error("known block content mismatch")
	}
}

func TestApplyFileUnresolvableKnownFails(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	instructions := []delta.Instruction{
		{Op: delta.OpKnown, Weak: 1, Strong: block.Hash([]byte("missing"))},
		{Op: delta.OpEndFile, TotalSize: 7},
	}

	outputPath := filepath.Join(dir, "out.txt")
	err := applier.ApplyFile(0, outputPath, instructions, nil)
	if err == nil {
		t.Fatal("expected an error for an unresolvable KNOWN block")
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("expected no output file to be committed on failure")
	}
}

func TestApplyFileLengthMismatchFails(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	instructions := []delta.Instruction{
		{Op: delta.OpLiteral, Literal: []byte("short")},
		{Op: delta.OpEndFile, TotalSize: 999},
	}

	outputPath := filepath.Join(dir, "out.txt")
	if err := applier.ApplyFile(0, outputPath, instructions, nil); err == nil {
		t.Fatal("expected a length mismatch error")
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("expected no output file to be committed on a length mismatch")
	}
}

func TestApplyFileBackrefAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	firstInstructions := []delta.Instruction{
		{Op: delta.OpLiteral, Literal: []byte("REUSED-CONTENT")},
		{Op: delta.OpEndFile, TotalSize: 14},
	}
	firstPath := filepath.Join(dir, "first.txt")
	if err := applier.ApplyFile(0, firstPath, firstInstructions, nil); err != nil {
		t.Fatal(err)
	}

	secondInstructions := []delta.Instruction{
		{Op: delta.OpBackref, SrcFileID: 0, Offset: 0, Length: 14},
		{Op: delta.OpEndFile, TotalSize: 14},
	}
	secondPath := filepath.Join(dir, "second.txt")
	if err := applier.ApplyFile(1, secondPath, secondInstructions, nil); err != nil {
		t.Fatal("backref resolution against an earlier file failed:", err)
	}

	got, err := os.ReadFile(secondPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "REUSED-CONTENT" {
		t.Errorf("backref-reconstructed content mismatch: %q", got)
	}
}

func TestApplyFileBadBackrefForwardReferenceFails(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	instructions := []delta.Instruction{
		{Op: delta.OpBackref, SrcFileID: 5, Offset: 0, Length: 4},
		{Op: delta.OpEndFile, TotalSize: 4},
	}
	outputPath := filepath.Join(dir, "out.txt")
	if err := applier.ApplyFile(0, outputPath, instructions, nil); err == nil {
		t.Fatal("expected a bad-backref error for a forward or self reference")
	}
}

func TestApplyFileWholeFileVerification(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(&stubResolver{byStrong: map[block.Strong][]byte{}})

	data := []byte("verify me")
	digest := sha1.Sum(data)

	instructions := []delta.Instruction{
		{Op: delta.OpLiteral, Literal: data},
		{Op: delta.OpEndFile, TotalSize: int64(len(data))},
	}
	outputPath := filepath.Join(dir, "out.txt")
	if err := applier.ApplyFile(0, outputPath, instructions, digest[:]); err != nil {
		t.Fatal("expected verification to succeed with a matching digest:", err)
	}

	badDigest := sha1.Sum([]byte("wrong"))
	outputPath2 := filepath.Join(dir, "out2.txt")
	if err := applier.ApplyFile(1, outputPath2, instructions, badDigest[:]); err == nil {
		t.Fatal("expected verification to fail with a mismatching digest")
	}
}
