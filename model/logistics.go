package model

type SupplyType string

const (
	SupplyFuel       SupplyType = "fuel"
	SupplyAmmunition SupplyType = "ammunition"
	SupplySpareParts SupplyType = "spare_parts"
	SupplyFood       SupplyType = "food"
)

type LogisticsRequirements struct {
	FuelCapacity        float64 `json:"fuelCapacity"`
	FuelConsumptionRate float64 `json:"fuelConsumptionRate"` // per time unit
	CurrentFuel         float64 `json:"currentFuel"`

	AmmunitionRequirements map[string]int `json:"ammunitionRequirements,omitempty"`
	SparePartsRequirements map[string]int `json:"sparePartsRequirements,omitempty"`
	CrewRequirements       int            `json:"crewRequirements"`

	MaintenanceInterval   float64 `json:"maintenanceInterval"`
	LastMaintenance       float64 `json:"lastMaintenance"`
	MaintenanceEfficiency float64 `json:"maintenanceEfficiency"`

	SupplyStatus   map[SupplyType]float64 `json:"supplyStatus"`
	LogisticsRange float64                `json:"logisticsRange"` // 0 means unlimited
}

// FuelFraction is current fuel over capacity, or 0 without a tank.
func (l LogisticsRequirements) FuelFraction() float64 {
	if l.FuelCapacity <= 0 {
		return 0
	}
	return l.CurrentFuel / l.FuelCapacity
}

// Clone returns a deep copy.
func (l LogisticsRequirements) Clone() LogisticsRequirements {
	out := l
	out.AmmunitionRequirements = cloneIntMap(l.AmmunitionRequirements)
	out.SparePartsRequirements = cloneIntMap(l.SparePartsRequirements)
	if l.SupplyStatus != nil {
		out.SupplyStatus = make(map[SupplyType]float64, len(l.SupplyStatus))
		for k, v := range l.SupplyStatus {
			out.SupplyStatus[k] = v
		}
	}
	return out
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
