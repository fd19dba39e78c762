package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_PutReplaces(t *testing.T) {
	def := Definition{}
	def.Put("num_workers", Fixed(NumberScalar(4)))
	def.Put("num_workers", Range(1, 8))
	def.Put("num_workers", Range(1, 8))

	assert.Len(t, def, 1)
	got, ok := def.Get("num_workers")
	require.True(t, ok)
	assert.True(t, got.Equal(Range(1, 8)))

	def.Remove("num_workers")
	def.Remove("num_workers")
	assert.Empty(t, def)
}

func TestDefinition_CloneIsDeep(t *testing.T) {
	def := Definition{"runtime_engine": {Mode: ModeAllowlist, Values: []Scalar{StringScalar("PHOTON")}}}
	clone := def.Clone()
	clone["runtime_engine"].Values[0] = StringScalar("STANDARD")
	clone.Put("num_workers", Fixed(NumberScalar(1)))

	assert.Equal(t, "PHOTON", def["runtime_engine"].Values[0].Str)
	assert.Len(t, def, 1)
}

func TestDefinition_ToJSON(t *testing.T) {
	def := Definition{}
	def.Put("aws_attributes.availability", Fixed(StringScalar("SPOT")))
	def.Put("autoscale.max_workers", Range(1, 8))

	data, err := def.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"aws_attributes.availability": {"type":"fixed","value":"SPOT"},
		"autoscale.max_workers": {"type":"range","minValue":1,"maxValue":8}
	}`, string(data))

	var empty Definition
	data, err = empty.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestDefinition_RoundTripThroughBuilder(t *testing.T) {
	b, _ := newTestBuilder()
	ctx := context.Background()

	requests := []Request{
		{Attribute: "aws_attributes.availability", Mode: ModeFixed, Payload: Payload{Value: raw("SPOT")}, Modifiers: Modifiers{Hidden: true}},
		{Attribute: "autoscale.max_workers", Mode: ModeRange, Payload: Payload{MinValue: floatPtr(1), MaxValue: floatPtr(8)}, Modifiers: Modifiers{DefaultValue: raw("2")}},
		{Attribute: "node_type_id", Mode: ModeAllowlist, Payload: Payload{Values: raws("i3.xlarge", "m5.large")}, Modifiers: Modifiers{IsOptional: true}},
		{Attribute: "cluster_name", Mode: ModeRegex, Payload: Payload{Pattern: "^team-[a-z]+$"}},
		{Attribute: "custom_tags.*", Discriminator: "CostCenter", Mode: ModeBlocklist, Payload: Payload{Values: raws("none")}},
		{Attribute: "enable_local_disk_encryption", Mode: ModeFixed, Payload: Payload{Value: raw("false")}},
		{Attribute: "instance_pool_id", Mode: ModeForbidden},
		{Attribute: "autotermination_minutes", Mode: ModeUnlimited, Modifiers: Modifiers{DefaultValue: raw("30"), IsOptional: true}},
	}

	def := Definition{}
	for _, req := range requests {
		name, c, err := b.Build(ctx, req)
		require.NoError(t, err, req.Attribute)
		def.Put(name, c)
	}

	data, err := def.ToJSON()
	require.NoError(t, err)
	parsed, err := ParseDefinition(data)
	require.NoError(t, err)
	assert.True(t, def.Equal(parsed))
	assert.Equal(t, def.Names(), parsed.Names())
}

func TestParseDefinition(t *testing.T) {
	t.Run("blank input", func(t *testing.T) {
		def, err := ParseDefinition([]byte("  "))
		require.NoError(t, err)
		assert.Empty(t, def)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := ParseDefinition([]byte(`["a"]`))
		assert.Error(t, err)
	})

	t.Run("impossible payload names the attribute", func(t *testing.T) {
		_, err := ParseDefinition([]byte(`{"num_workers":{"type":"range","minValue":9,"maxValue":1}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "num_workers")
	})
}

func TestDefinition_Validate(t *testing.T) {
	catalog := DefaultCatalog()

	valid := Definition{
		"custom_tags.Team": Fixed(StringScalar("data")),
		"num_workers":      Range(1, 4),
	}
	assert.NoError(t, valid.Validate(catalog))

	unknown := Definition{"gpu_count": Fixed(NumberScalar(1))}
	assert.ErrorIs(t, unknown.Validate(catalog), ErrUnknownAttribute)

	illegal := Definition{"enable_elastic_disk": Range(0, 1)}
	requireField(t, illegal.Validate(catalog), "enable_elastic_disk")
}
