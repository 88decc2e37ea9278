package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payapp-engine/aia"
	"github.com/warp/payapp-engine/factory"
)

const fitoutTemplate = `{
  "project_id": "mill-race-fitout",
  "period_to": "2024-05-31",
  "original_contract_sum": "86000",
  "net_change_by_change_orders": "-1500.00",
  "retainage_percentage": "5",
  "items": [
    {"item_number": "A1", "description": "Demolition", "csi_division": "02", "scheduled_value": "9500.00", "work_completed_this_period": "9500.00"},
    {"item_number": "A5", "description": "Doors", "csi_division": "08", "csi_division_name": "Doors and Hardware", "scheduled_value": "25000.00", "materials_stored": "7300.00"}
  ]
}`

func TestParseTemplate(t *testing.T) {
	// GIVEN: A template with whole-dollar and cent amounts
	// WHEN: Parsing it
	// THEN: Amounts, dates and division names are filled in

	f := factory.NewTemplateFactory()

	in, err := f.ParseTemplate(fitoutTemplate)
	require.NoError(t, err)

	assert.Equal(t, "mill-race-fitout", in.ProjectID)
	assert.Equal(t, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC), in.PeriodTo)
	assert.Equal(t, int64(8600000), in.OriginalContractSum.Cents())
	assert.Equal(t, int64(-150000), in.NetChangeByChangeOrders.Cents())
	assert.True(t, in.LessPreviousCertificates.IsZero())
	assert.True(t, aia.WholePercent(5).Equal(in.RetainagePercentage))

	require.Len(t, in.Items, 2)
	assert.Equal(t, "Existing Conditions", in.Items[0].CSIDivisionName, "name from catalog")
	assert.Equal(t, "Doors and Hardware", in.Items[1].CSIDivisionName, "explicit name kept")
	assert.Equal(t, int64(730000), in.Items[1].MaterialsStored.Cents())
	assert.True(t, in.Items[1].WorkCompletedThisPeriod.IsZero())

	app, err := aia.NewApplication("app-1", 1, in, in.PeriodTo)
	require.NoError(t, err)
	assert.Equal(t, int64(1680000), app.Summary.TotalCompletedAndStoredToDate.Cents())
	assert.Equal(t, int64(84000), app.Summary.RetainageAmount.Cents())
}

func TestParseTemplate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr error
	}{
		{"missing project", `{"items": []}`, aia.ErrInvalidApplication},
		{"bad date", `{"project_id": "p", "period_to": "31/05/2024"}`, aia.ErrInvalidApplication},
		{"sub-cent amount", `{"project_id": "p", "original_contract_sum": "10.005"}`, aia.ErrInvalidAmount},
		{"bad retainage", `{"project_id": "p", "retainage_percentage": "ten"}`, aia.ErrInvalidAmount},
		{"bad item amount", `{"project_id": "p", "items": [{"item_number": "1", "csi_division": "03", "scheduled_value": "1.5"}]}`, aia.ErrInvalidAmount},
	}

	f := factory.NewTemplateFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseTemplate(tt.json)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.ParseTemplate(`{not json`)
	assert.ErrorContains(t, err, "invalid template JSON")
}

func TestParseTemplate_ItemAmountErrorNamesField(t *testing.T) {
	f := factory.NewTemplateFactory()

	_, err := f.ParseTemplate(`{"project_id": "p", "items": [{"item_number": "7", "csi_division": "03", "scheduled_value": "100.00", "materials_stored": "abc"}]}`)

	var amountErr *aia.InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "materials_stored", amountErr.Field)
	assert.Contains(t, err.Error(), "item 7")
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewTemplateFactory()
	in, err := f.ParseTemplate(fitoutTemplate)
	require.NoError(t, err)
	app, err := aia.NewApplication("app-1", 1, in, in.PeriodTo)
	require.NoError(t, err)

	tj := f.ToJSON(app)

	assert.Equal(t, "2024-05-31", tj.PeriodTo)
	assert.Equal(t, "86000.00", tj.OriginalContractSum)
	assert.Equal(t, "5.00", tj.RetainagePercentage)
	require.Len(t, tj.Items, 2)
	assert.Equal(t, "9500.00", tj.Items[0].WorkCompletedThisPeriod)

	back, err := f.FromJSON(tj)
	require.NoError(t, err)
	assert.Equal(t, in.Items[1].MaterialsStored, back.Items[1].MaterialsStored)
	assert.Equal(t, in.NetChangeByChangeOrders, back.NetChangeByChangeOrders)
}

func TestCatalog(t *testing.T) {
	assert.Equal(t, "Concrete", factory.MasterFormat.Name("03"))
	assert.Empty(t, factory.MasterFormat.Name("99"))

	divisions := factory.MasterFormat.Divisions()
	require.NotEmpty(t, divisions)
	assert.Equal(t, "00", divisions[0].Code)
	for i := 1; i < len(divisions); i++ {
		assert.Less(t, divisions[i-1].Code, divisions[i].Code)
	}
}
