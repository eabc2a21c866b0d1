package endpoints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"sysmon-api/internal/domain"
)

const maxBodyBytes = 1 << 20

// MetricPayload is one metric object as sent by clients. Every field is
// optional: absent numbers default to 0 and an absent hora defaults to the
// arrival time. porcentaje_cpu_libre is accepted but ignored; it is always
// derived from porcentaje_cpu_uso.
//
// The nested timestamp/cpu/ram/procesos form emitted by the node agent is
// also understood. Flat fields win when both are present.
type MetricPayload struct {
	TotalRAM           *int64   `json:"total_ram"`
	RAMLibre           *int64   `json:"ram_libre"`
	UsoRAM             *int64   `json:"uso_ram"`
	PorcentajeRAM      *float64 `json:"porcentaje_ram"`
	PorcentajeCPUUso   *float64 `json:"porcentaje_cpu_uso"`
	PorcentajeCPULibre *float64 `json:"porcentaje_cpu_libre"`
	ProcesosCorriendo  *int64   `json:"procesos_corriendo"`
	TotalProcesos      *int64   `json:"total_procesos"`
	ProcesosDurmiendo  *int64   `json:"procesos_durmiendo"`
	ProcesosZombie     *int64   `json:"procesos_zombie"`
	ProcesosParados    *int64   `json:"procesos_parados"`
	Hora               *string  `json:"hora"`

	Timestamp *int64          `json:"timestamp"`
	CPU       *agentCPU       `json:"cpu"`
	RAM       *agentRAM       `json:"ram"`
	Procesos  *agentProcesses `json:"procesos"`
}

type agentCPU struct {
	PorcentajeUso *float64 `json:"porcentajeUso"`
}

type agentRAM struct {
	Total         *int64   `json:"total"`
	Libre         *int64   `json:"libre"`
	Uso           *int64   `json:"uso"`
	PorcentajeUso *float64 `json:"porcentajeUso"`
}

type agentProcesses struct {
	Corriendo *int64 `json:"procesos_corriendo"`
	Total     *int64 `json:"total_processos"`
	Durmiendo *int64 `json:"procesos_durmiendo"`
	Zombie    *int64 `json:"procesos_zombie"`
	Parados   *int64 `json:"procesos_parados"`
}

var horaLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	domain.HoraLayout,
}

// DecodePayload reads a body that must be a JSON object or a non-empty
// array of JSON objects.
func DecodePayload(r io.Reader) ([]MetricPayload, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, &domain.ValidationError{Index: -1, Reason: "unable to read request body"}
	}
	if len(body) > maxBodyBytes {
		return nil, &domain.ValidationError{Index: -1, Reason: "request body too large"}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &domain.ValidationError{Index: -1, Reason: "empty request body"}
	}
	if !json.Valid(body) {
		return nil, &domain.ValidationError{Index: -1, Reason: "request body is not valid JSON"}
	}

	switch body[0] {
	case '{':
		p, err := decodeItem(body, -1)
		if err != nil {
			return nil, err
		}
		return []MetricPayload{p}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, &domain.ValidationError{Index: -1, Reason: "request body is not valid JSON"}
		}
		if len(items) == 0 {
			return nil, &domain.ValidationError{Index: -1, Reason: "no metric items in payload"}
		}

		payloads := make([]MetricPayload, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, &domain.ValidationError{Index: i, Reason: "array items must be JSON objects"}
			}
			p, err := decodeItem(item, i)
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, p)
		}
		return payloads, nil

	default:
		return nil, &domain.ValidationError{Index: -1, Reason: "payload must be a JSON object or an array of objects"}
	}
}

func decodeItem(raw []byte, index int) (MetricPayload, error) {
	var p MetricPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return MetricPayload{}, &domain.ValidationError{
				Index:  index,
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}
		}
		return MetricPayload{}, &domain.ValidationError{Index: index, Reason: err.Error()}
	}
	return p, nil
}

// ToSample applies defaults and bounds checks. now supplies the timestamp
// when the payload carries none.
func (p MetricPayload) ToSample(now time.Time) (domain.MetricSample, error) {
	ts, err := p.timestamp(now)
	if err != nil {
		return domain.MetricSample{}, err
	}

	s := domain.MetricSample{
		Timestamp: ts,
		CPU: domain.CPUMetric{
			PorcentajeUso: floatOr(p.PorcentajeCPUUso, p.CPU.uso()),
		},
		RAM: domain.RAMMetric{
			Total:         intOr(p.TotalRAM, p.RAM.field(func(r *agentRAM) *int64 { return r.Total })),
			Libre:         intOr(p.RAMLibre, p.RAM.field(func(r *agentRAM) *int64 { return r.Libre })),
			Uso:           intOr(p.UsoRAM, p.RAM.field(func(r *agentRAM) *int64 { return r.Uso })),
			PorcentajeUso: floatOr(p.PorcentajeRAM, p.RAM.percent()),
		},
		Processes: domain.ProcessMetric{
			Corriendo: intOr(p.ProcesosCorriendo, p.Procesos.field(func(a *agentProcesses) *int64 { return a.Corriendo })),
			Total:     intOr(p.TotalProcesos, p.Procesos.field(func(a *agentProcesses) *int64 { return a.Total })),
			Durmiendo: intOr(p.ProcesosDurmiendo, p.Procesos.field(func(a *agentProcesses) *int64 { return a.Durmiendo })),
			Zombie:    intOr(p.ProcesosZombie, p.Procesos.field(func(a *agentProcesses) *int64 { return a.Zombie })),
			Parados:   intOr(p.ProcesosParados, p.Procesos.field(func(a *agentProcesses) *int64 { return a.Parados })),
		},
	}
	if err := s.Validate(); err != nil {
		return domain.MetricSample{}, err
	}
	return s, nil
}

func (p MetricPayload) timestamp(now time.Time) (int64, error) {
	if p.Hora != nil && strings.TrimSpace(*p.Hora) != "" {
		hora := strings.TrimSpace(*p.Hora)
		for _, layout := range horaLayouts {
			if t, err := time.Parse(layout, hora); err == nil {
				return t.Unix(), nil
			}
		}
		return 0, &domain.ValidationError{Index: -1, Field: "hora", Reason: fmt.Sprintf("unrecognised time %q; expected ISO-8601", hora)}
	}
	if p.Timestamp != nil {
		return *p.Timestamp, nil
	}
	return now.Unix(), nil
}

// ParseSamples converts decoded payloads in order, tagging any error with
// the item index when the body was an array.
func ParseSamples(payloads []MetricPayload, now time.Time) ([]domain.MetricSample, error) {
	samples := make([]domain.MetricSample, 0, len(payloads))
	for i, p := range payloads {
		s, err := p.ToSample(now)
		if err != nil {
			var verr *domain.ValidationError
			if len(payloads) > 1 && errors.As(err, &verr) {
				verr.Index = i
			}
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func (c *agentCPU) uso() *float64 {
	if c == nil {
		return nil
	}
	return c.PorcentajeUso
}

func (r *agentRAM) percent() *float64 {
	if r == nil {
		return nil
	}
	return r.PorcentajeUso
}

func (r *agentRAM) field(get func(*agentRAM) *int64) *int64 {
	if r == nil {
		return nil
	}
	return get(r)
}

func (a *agentProcesses) field(get func(*agentProcesses) *int64) *int64 {
	if a == nil {
		return nil
	}
	return get(a)
}

func intOr(vals ...*int64) int64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

func floatOr(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}
