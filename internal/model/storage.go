package model

import (
	"errors"
	"fmt"
	"math"
)

// Storage defines a behind-the-meter battery owned by a member.
// Units:
// - CapacityKWh: kWh (nominal capacity)
// - MaxPowerKW: kW (charge and discharge limit)
// - Efficiencies: 0..1
// - InitialKWh: kWh of energy content at the start of the horizon
// - MinSOC, MaxSOC: fraction 0..1 of CapacityKWh
// - DegradationCost: €/kWh throughput (charge + discharge)
type Storage struct {
	ID                  string  `json:"id" yaml:"id"`
	CapacityKWh         float64 `json:"e_bn" yaml:"e_bn"`
	MaxPowerKW          float64 `json:"p_max" yaml:"p_max"`
	ChargeEfficiency    float64 `json:"eff_bc" yaml:"eff_bc"`
	DischargeEfficiency float64 `json:"eff_bd" yaml:"eff_bd"`
	InitialKWh          float64 `json:"init_e" yaml:"init_e"`
	MinSOC              float64 `json:"soc_min" yaml:"soc_min"`
	MaxSOC              float64 `json:"soc_max" yaml:"soc_max"`
	DegradationCost     float64 `json:"degradation_cost" yaml:"degradation_cost"`
}

func (s Storage) Validate() error {
	if s.CapacityKWh <= 0 {
		return errors.New("e_bn must be > 0")
	}
	if s.MaxPowerKW <= 0 {
		return errors.New("p_max must be > 0")
	}
	if s.ChargeEfficiency <= 0 || s.ChargeEfficiency > 1 {
		return errors.New("eff_bc must be in (0, 1]")
	}
	if s.DischargeEfficiency <= 0 || s.DischargeEfficiency > 1 {
		return errors.New("eff_bd must be in (0, 1]")
	}
	if s.MinSOC < 0 || s.MinSOC > 1 || s.MaxSOC < 0 || s.MaxSOC > 1 || s.MinSOC > s.MaxSOC {
		return errors.New("soc_min/soc_max must satisfy 0<=soc_min<=soc_max<=1")
	}
	if s.InitialKWh < s.MinSOC*s.CapacityKWh-1e-9 || s.InitialKWh > s.MaxSOC*s.CapacityKWh+1e-9 {
		return fmt.Errorf("init_e must be within [%.3f, %.3f] kWh", s.MinSOC*s.CapacityKWh, s.MaxSOC*s.CapacityKWh)
	}
	if s.DegradationCost < 0 {
		return errors.New("degradation_cost must be >= 0")
	}
	return nil
}

// MinKWh and MaxKWh bound the energy content.
func (s Storage) MinKWh() float64 { return s.MinSOC * s.CapacityKWh }
func (s Storage) MaxKWh() float64 { return s.MaxSOC * s.CapacityKWh }

// StorageStep is what one session of dispatch did to a storage unit.
// Convention: positive grid energy = discharge (lowers the member's net
// load), negative = charge.
type StorageStep struct {
	GridKWh      float64 // realized grid-side energy (may be clipped)
	ChargeKWh    float64 // grid-side energy used to charge
	DischargeKWh float64 // grid-side energy delivered when discharging
	StartKWh     float64
	EndKWh       float64
}

// Throughput is ChargeKWh + DischargeKWh.
func (r StorageStep) Throughput() float64 { return r.ChargeKWh + r.DischargeKWh }

// Step applies a requested grid-side energy for one session of deltaT hours
// starting from energy content e, enforcing the power limit and the SOC
// bounds by clipping the request.
func (s Storage) Step(e, requestKWh, deltaT float64) StorageStep {
	res := StorageStep{StartKWh: e}

	limitByPower := s.MaxPowerKW * deltaT
	req := math.Max(-limitByPower, math.Min(limitByPower, requestKWh))

	if req < 0 {
		// Charging: grid energy needed = stored / eff.
		storable := math.Max(0, s.MaxKWh()-e)
		fromGrid := math.Min(-req, storable/s.ChargeEfficiency)
		e += fromGrid * s.ChargeEfficiency
		res.GridKWh = -fromGrid
		res.ChargeKWh = fromGrid
	} else if req > 0 {
		// Discharging: grid energy delivered = withdrawn * eff.
		withdrawable := math.Max(0, e-s.MinKWh())
		toGrid := math.Min(req, withdrawable*s.DischargeEfficiency)
		e -= toGrid / s.DischargeEfficiency
		res.GridKWh = toGrid
		res.DischargeKWh = toGrid
	}

	// Clamp numeric drift.
	res.EndKWh = math.Max(s.MinKWh(), math.Min(s.MaxKWh(), e))
	return res
}
