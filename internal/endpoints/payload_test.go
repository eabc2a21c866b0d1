package endpoints

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysmon-api/internal/domain"
)

func TestDecodePayload_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"whitespace":       "  \n ",
		"not json":         "cpu=10",
		"scalar":           "42",
		"string":           `"hello"`,
		"empty array":      "[]",
		"array of numbers": "[1,2]",
		"wrong type":       `{"porcentaje_cpu_uso":"high"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePayload(strings.NewReader(body))
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestDecodePayload_ArrayItemIndex(t *testing.T) {
	_, err := DecodePayload(strings.NewReader(`[{}, 7]`))
	idx, ok := domain.ItemIndex(err)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, err = DecodePayload(strings.NewReader(`[{}, {"total_ram":"lots"}]`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "total_ram", verr.Field)
}

func TestToSample_Defaults(t *testing.T) {
	now := time.Unix(1700000000, 0)

	payloads, err := DecodePayload(strings.NewReader(`{}`))
	require.NoError(t, err)
	s, err := payloads[0].ToSample(now)
	require.NoError(t, err)
	assert.Equal(t, domain.MetricSample{Timestamp: 1700000000}, s)
}

func TestToSample_IgnoresClientCPUFree(t *testing.T) {
	payloads, err := DecodePayload(strings.NewReader(`{"porcentaje_cpu_uso":30,"porcentaje_cpu_libre":5}`))
	require.NoError(t, err)
	s, err := payloads[0].ToSample(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 70.0, domain.ReshapeSample(s).CPU.PorcentajeLibre)
}

func TestToSample_Hora(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC).Unix()

	for _, hora := range []string{
		"2024-03-01T12:30:00Z",
		"2024-03-01T12:30:00",
		"2024-03-01T12:30:00.250",
		"2024-03-01 12:30:00",
		"2024-03-01T14:30:00+02:00",
	} {
		p := MetricPayload{Hora: &hora}
		s, err := p.ToSample(time.Now())
		require.NoError(t, err, hora)
		assert.Equal(t, want, s.Timestamp, hora)
	}

	bad := "yesterday"
	_, err := MetricPayload{Hora: &bad}.ToSample(time.Now())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "hora", verr.Field)
}

func TestToSample_AgentFormat(t *testing.T) {
	body := `{
		"timestamp": 1700000100,
		"cpu": {"porcentajeUso": 33.3},
		"ram": {"total": 8000000, "libre": 2000000, "uso": 6000000, "porcentajeUso": 75},
		"procesos": {"procesos_corriendo": 2, "total_processos": 150, "procesos_durmiendo": 140, "procesos_zombie": 1, "procesos_parados": 7}
	}`
	payloads, err := DecodePayload(strings.NewReader(body))
	require.NoError(t, err)

	s, err := payloads[0].ToSample(time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.MetricSample{
		Timestamp: 1700000100,
		CPU:       domain.CPUMetric{PorcentajeUso: 33.3},
		RAM:       domain.RAMMetric{Total: 8000000, Libre: 2000000, Uso: 6000000, PorcentajeUso: 75},
		Processes: domain.ProcessMetric{Corriendo: 2, Total: 150, Durmiendo: 140, Zombie: 1, Parados: 7},
	}, s)
}

func TestToSample_FlatFieldsWin(t *testing.T) {
	payloads, err := DecodePayload(strings.NewReader(`{"porcentaje_cpu_uso": 10, "cpu": {"porcentajeUso": 90}}`))
	require.NoError(t, err)
	s, err := payloads[0].ToSample(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.CPU.PorcentajeUso)
}

func TestParseSamples_OutOfRange(t *testing.T) {
	payloads, err := DecodePayload(strings.NewReader(`{"procesos_zombie": -1}`))
	require.NoError(t, err)

	_, err = ParseSamples(payloads, time.Now())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, -1, verr.Index, "A single object carries no index")
	assert.Equal(t, "procesos_zombie", verr.Field)

	payloads, err = DecodePayload(strings.NewReader(`[{}, {}, {"porcentaje_ram": 101}]`))
	require.NoError(t, err)
	_, err = ParseSamples(payloads, time.Now())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Index)
}
