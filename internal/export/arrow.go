// Package export serializes population snapshots to Arrow IPC files. The
// columnar store maps directly onto Arrow record batches, which makes the
// snapshot readable by any Arrow-capable analysis tool without a custom
// loader.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/nvandessel/swarmlod/internal/engine"
)

// Schema returns the Arrow schema for a population snapshot. The tick is
// carried in the schema metadata under the "tick" key.
func Schema(tick uint64) *arrow.Schema {
	md := arrow.NewMetadata([]string{"tick"}, []string{strconv.FormatUint(tick, 10)})
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "tier", Type: arrow.PrimitiveTypes.Int8},
		{Name: "predicted", Type: arrow.PrimitiveTypes.Float64},
		{Name: "wake_mask", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "x", Type: arrow.PrimitiveTypes.Float32},
		{Name: "y", Type: arrow.PrimitiveTypes.Float32},
		{Name: "vx", Type: arrow.PrimitiveTypes.Float32},
		{Name: "vy", Type: arrow.PrimitiveTypes.Float32},
		{Name: "health", Type: arrow.PrimitiveTypes.Float32},
		{Name: "activity", Type: arrow.PrimitiveTypes.Float32},
		{Name: "eagerness", Type: arrow.PrimitiveTypes.Float64},
		{Name: "share_prob", Type: arrow.PrimitiveTypes.Float64},
		{Name: "retries", Type: arrow.PrimitiveTypes.Int32},
		{Name: "actions", Type: arrow.ListOf(arrow.BinaryTypes.String)},
	}, &md)
}

// batchSize bounds the rows per record batch so multi-million agent
// snapshots stream without one giant allocation.
const batchSize = 65536

// WriteSnapshot writes the snapshot as an Arrow IPC file.
func WriteSnapshot(w io.Writer, rows []engine.SnapshotRow, tick uint64) error {
	mem := arrowmem.NewGoAllocator()
	schema := Schema(tick)

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}

	for lo := 0; lo < len(rows); lo += batchSize {
		hi := lo + batchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		rec := buildRecord(mem, schema, rows[lo:hi])
		err := fw.Write(rec)
		rec.Release()
		if err != nil {
			fw.Close()
			return fmt.Errorf("writing record batch: %w", err)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

func buildRecord(mem arrowmem.Allocator, schema *arrow.Schema, rows []engine.SnapshotRow) arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	ids := b.Field(0).(*array.Uint32Builder)
	tiers := b.Field(1).(*array.Int8Builder)
	predicted := b.Field(2).(*array.Float64Builder)
	wake := b.Field(3).(*array.Uint64Builder)
	xs := b.Field(4).(*array.Float32Builder)
	ys := b.Field(5).(*array.Float32Builder)
	vxs := b.Field(6).(*array.Float32Builder)
	vys := b.Field(7).(*array.Float32Builder)
	health := b.Field(8).(*array.Float32Builder)
	activity := b.Field(9).(*array.Float32Builder)
	eagerness := b.Field(10).(*array.Float64Builder)
	shareProb := b.Field(11).(*array.Float64Builder)
	retries := b.Field(12).(*array.Int32Builder)
	actions := b.Field(13).(*array.ListBuilder)
	actionValues := actions.ValueBuilder().(*array.StringBuilder)

	for _, r := range rows {
		ids.Append(uint32(r.Row.ID))
		tiers.Append(int8(r.Tier))
		predicted.Append(r.Row.Predicted)
		wake.Append(uint64(r.Row.Wake))
		xs.Append(r.Row.X)
		ys.Append(r.Row.Y)
		vxs.Append(r.Row.VX)
		vys.Append(r.Row.VY)
		health.Append(r.Row.Health)
		activity.Append(r.Row.Activity)
		eagerness.Append(r.Row.RL.Eagerness)
		shareProb.Append(r.Row.RL.ShareProb)
		retries.Append(int32(r.Row.Retries))
		actions.Append(true)
		for _, a := range r.Row.Actions {
			actionValues.Append(a)
		}
	}
	return b.NewRecord()
}
