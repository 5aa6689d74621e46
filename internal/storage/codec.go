package storage

import (
	"encoding/json"
	"errors"

	"spikenet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp of records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeSnapshot(s model.DomainSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.DomainSnapshot, error) {
	var snapshot model.DomainSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.DomainSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.DomainSnapshot{}, err
	}
	if err := checkColumns(snapshot); err != nil {
		return model.DomainSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeTickHistory(history []model.TickStats) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeTickHistory(data []byte) ([]model.TickStats, error) {
	var history []model.TickStats
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

var errRaggedSnapshot = errors.New("snapshot columns have different lengths")

func checkColumns(s model.DomainSnapshot) error {
	n := len(s.Neurons.Levels)
	if len(s.Neurons.Flags) != n || len(s.Neurons.Ticks) != n || len(s.Neurons.Vitality) != n {
		return errRaggedSnapshot
	}
	m := len(s.Synapses.Levels)
	if len(s.Synapses.Pre) != m || len(s.Synapses.Post) != m {
		return errRaggedSnapshot
	}
	return nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
