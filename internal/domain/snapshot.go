package domain

import (
	"math"
	"time"
)

// HoraLayout is the display format used for the "hora" field.
const HoraLayout = "2006-01-02 15:04:05"

type CPUView struct {
	Timestamp       int64   `json:"timestamp"`
	PorcentajeUso   float64 `json:"porcentaje_uso"`
	PorcentajeLibre float64 `json:"porcentaje_libre"`
}

// RAMView carries raw KB values plus display conversions: TotalRAM and
// UsoRAM are whole MB (KB/1024), the *GB fields are KB/1024/1024 rounded
// to two decimals.
type RAMView struct {
	Timestamp     int64   `json:"timestamp"`
	Total         int64   `json:"total"`
	Libre         int64   `json:"libre"`
	Uso           int64   `json:"uso"`
	PorcentajeUso float64 `json:"porcentaje_uso"`
	TotalRAM      int64   `json:"total_ram"`
	UsoRAM        int64   `json:"uso_ram"`
	TotalGB       float64 `json:"total_gb"`
	UsoGB         float64 `json:"uso_gb"`
}

type ProcessView struct {
	Timestamp int64 `json:"timestamp"`
	ProcessMetric
}

// Snapshot is the client-facing shape of the latest values.
type Snapshot struct {
	Timestamp int64       `json:"timestamp"`
	Hora      string      `json:"hora"`
	CPU       CPUView     `json:"cpu"`
	RAM       RAMView     `json:"ram"`
	Procesos  ProcessView `json:"procesos"`
}

// FlatSnapshot is the single-level form used by the complete endpoint and
// the ingestion response.
type FlatSnapshot struct {
	TotalRAM           int64   `json:"total_ram"`
	RAMLibre           int64   `json:"ram_libre"`
	UsoRAM             int64   `json:"uso_ram"`
	PorcentajeRAM      float64 `json:"porcentaje_ram"`
	PorcentajeCPUUso   float64 `json:"porcentaje_cpu_uso"`
	PorcentajeCPULibre float64 `json:"porcentaje_cpu_libre"`
	ProcesosCorriendo  int64   `json:"procesos_corriendo"`
	TotalProcesos      int64   `json:"total_procesos"`
	ProcesosDurmiendo  int64   `json:"procesos_durmiendo"`
	ProcesosZombie     int64   `json:"procesos_zombie"`
	ProcesosParados    int64   `json:"procesos_parados"`
	Hora               string  `json:"hora"`
}

// Reshape converts stored values into a Snapshot. Empty input yields the
// zero Snapshot.
func Reshape(v LatestValues) Snapshot {
	var snap Snapshot

	cpuUso := clampPercent(v.CPU.PorcentajeUso)
	snap.CPU = CPUView{
		Timestamp:       v.CPUTimestamp,
		PorcentajeUso:   cpuUso,
		PorcentajeLibre: CPUFree(cpuUso),
	}

	snap.RAM = RAMView{
		Timestamp:     v.RAMTimestamp,
		Total:         v.RAM.Total,
		Libre:         v.RAM.Libre,
		Uso:           v.RAM.Uso,
		PorcentajeUso: clampPercent(v.RAM.PorcentajeUso),
		TotalRAM:      KBToMB(v.RAM.Total),
		UsoRAM:        KBToMB(v.RAM.Uso),
		TotalGB:       KBToGB(v.RAM.Total),
		UsoGB:         KBToGB(v.RAM.Uso),
	}

	snap.Procesos = ProcessView{Timestamp: v.ProcessesTimestamp, ProcessMetric: v.Processes}

	snap.Timestamp = max(v.CPUTimestamp, v.RAMTimestamp, v.ProcessesTimestamp)
	if snap.Timestamp > 0 {
		snap.Hora = time.Unix(snap.Timestamp, 0).UTC().Format(HoraLayout)
	}
	return snap
}

// ReshapeSample is Reshape for a single freshly ingested sample.
func ReshapeSample(s MetricSample) Snapshot {
	return Reshape(LatestValues{
		CPU:                s.CPU,
		CPUTimestamp:       s.Timestamp,
		RAM:                s.RAM,
		RAMTimestamp:       s.Timestamp,
		Processes:          s.Processes,
		ProcessesTimestamp: s.Timestamp,
	})
}

func (s Snapshot) Flat() FlatSnapshot {
	return FlatSnapshot{
		TotalRAM:           s.RAM.TotalRAM,
		RAMLibre:           s.RAM.Libre,
		UsoRAM:             s.RAM.UsoRAM,
		PorcentajeRAM:      s.RAM.PorcentajeUso,
		PorcentajeCPUUso:   s.CPU.PorcentajeUso,
		PorcentajeCPULibre: s.CPU.PorcentajeLibre,
		ProcesosCorriendo:  s.Procesos.Corriendo,
		TotalProcesos:      s.Procesos.Total,
		ProcesosDurmiendo:  s.Procesos.Durmiendo,
		ProcesosZombie:     s.Procesos.Zombie,
		ProcesosParados:    s.Procesos.Parados,
		Hora:               s.Hora,
	}
}

// Category returns the view for one category.
func (s Snapshot) Category(c Category) any {
	switch c {
	case CategoryCPU:
		return s.CPU
	case CategoryRAM:
		return s.RAM
	default:
		return s.Procesos
	}
}

// CPUFree derives the idle percentage, clamped to [0, 100].
func CPUFree(uso float64) float64 {
	return clampPercent(100 - uso)
}

func KBToMB(kb int64) int64 {
	if kb <= 0 {
		return 0
	}
	return kb / 1024
}

func KBToGB(kb int64) float64 {
	if kb <= 0 {
		return 0
	}
	return math.Round(float64(kb)/1024/1024*100) / 100
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
