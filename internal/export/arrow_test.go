package export

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/engine"
)

func sampleRows() []engine.SnapshotRow {
	dormant := columnar.CognitiveRow{}
	dormant.ID = 7
	dormant.Predicted = 0.3
	dormant.Wake = 1 << 4

	heavy := columnar.CognitiveRow{}
	heavy.ID = 8
	heavy.Predicted = 0.9
	heavy.Wake = 1
	heavy.X, heavy.Y = 12, 34
	heavy.VX, heavy.VY = 0.5, -0.5
	heavy.Health = 0.8
	heavy.Activity = 0.6
	heavy.RL.Eagerness = 2.1
	heavy.RL.ShareProb = 0.88
	heavy.Retries = 1
	heavy.Actions = []string{"harvest", "trade"}

	return []engine.SnapshotRow{
		{Tier: agent.TierDormant, Row: dormant},
		{Tier: agent.TierHeavy, Row: heavy},
	}
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, sampleRows(), 42); err != nil {
		t.Fatalf("WriteSnapshot = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader = %v", err)
	}
	defer fr.Close()

	md := fr.Schema().Metadata()
	if i := md.FindKey("tick"); i < 0 || md.Values()[i] != "42" {
		t.Errorf("schema metadata tick = %v, want 42", md)
	}

	if fr.NumRecords() != 1 {
		t.Fatalf("NumRecords = %d, want 1", fr.NumRecords())
	}
	rec, err := fr.Record(0)
	if err != nil {
		t.Fatalf("Record(0) = %v", err)
	}
	if rec.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2", rec.NumRows())
	}

	ids := rec.Column(0).(*array.Uint32)
	if ids.Value(0) != 7 || ids.Value(1) != 8 {
		t.Errorf("ids = [%d %d], want [7 8]", ids.Value(0), ids.Value(1))
	}
	tiers := rec.Column(1).(*array.Int8)
	if agent.Tier(tiers.Value(0)) != agent.TierDormant || agent.Tier(tiers.Value(1)) != agent.TierHeavy {
		t.Errorf("tiers = [%d %d]", tiers.Value(0), tiers.Value(1))
	}
	if got := rec.Column(2).(*array.Float64).Value(1); got != 0.9 {
		t.Errorf("predicted = %v, want 0.9", got)
	}
	if got := rec.Column(8).(*array.Float32).Value(1); got != 0.8 {
		t.Errorf("health = %v, want 0.8", got)
	}
	if got := rec.Column(10).(*array.Float64).Value(1); got != 2.1 {
		t.Errorf("eagerness = %v, want 2.1", got)
	}

	actions := rec.Column(13).(*array.List)
	vals := actions.ListValues().(*array.String)
	start, end := actions.ValueOffsets(1)
	if end-start != 2 || vals.Value(int(start)) != "harvest" || vals.Value(int(start+1)) != "trade" {
		t.Errorf("actions[1] span [%d,%d) in %v", start, end, vals)
	}
	if start2, end2 := actions.ValueOffsets(0); end2 != start2 {
		t.Errorf("dormant agent should have an empty action list, got span [%d,%d)", start2, end2)
	}
}

func TestWriteSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, nil, 0); err != nil {
		t.Fatalf("WriteSnapshot = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader = %v", err)
	}
	defer fr.Close()

	total := int64(0)
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			t.Fatal(err)
		}
		total += rec.NumRows()
	}
	if total != 0 {
		t.Errorf("rows in empty snapshot = %d, want 0", total)
	}
}

func TestWriteSnapshotBatching(t *testing.T) {
	n := batchSize + 100
	rows := make([]engine.SnapshotRow, n)
	for i := range rows {
		rows[i].Tier = agent.TierDormant
		rows[i].Row.ID = agent.ID(i)
		rows[i].Row.Predicted = float64(i%10) / 10
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, rows, 1); err != nil {
		t.Fatalf("WriteSnapshot = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader = %v", err)
	}
	defer fr.Close()

	if fr.NumRecords() != 2 {
		t.Fatalf("NumRecords = %d, want 2", fr.NumRecords())
	}
	total := int64(0)
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			t.Fatal(err)
		}
		total += rec.NumRows()
	}
	if total != int64(n) {
		t.Errorf("total rows = %d, want %d", total, n)
	}
}
