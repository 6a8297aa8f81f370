package model

// UnitStatus is the operational state of a unit.
type UnitStatus string

const (
	UnitPreflight   UnitStatus = "PREFLIGHT"
	UnitAirborne    UnitStatus = "AIRBORNE"
	UnitLoiter      UnitStatus = "LOITER"
	UnitIngress     UnitStatus = "INGRESS"
	UnitEgress      UnitStatus = "EGRESS"
	UnitRTB         UnitStatus = "RTB"
	UnitLanded      UnitStatus = "LANDED"
	UnitMaintenance UnitStatus = "MAINTENANCE"
)

// ConvoyStatus is the mission state of a convoy.
type ConvoyStatus string

const (
	ConvoyPlanning ConvoyStatus = "PLANNING"
	ConvoyActive   ConvoyStatus = "ACTIVE"
	ConvoyRTB      ConvoyStatus = "RTB"
	ConvoyComplete ConvoyStatus = "COMPLETE"
	ConvoyAbort    ConvoyStatus = "ABORT"
)

// MissionType classifies a convoy's mission.
type MissionType string

const (
	MissionISR      MissionType = "ISR"
	MissionStrike   MissionType = "STRIKE"
	MissionEscort   MissionType = "ESCORT"
	MissionResupply MissionType = "RESUPPLY"
	MissionSAR      MissionType = "SAR"
)

// WaypointKind classifies a route point.
type WaypointKind string

const (
	WaypointNav        WaypointKind = "NAV"
	WaypointLoiter     WaypointKind = "LOITER"
	WaypointStrike     WaypointKind = "STRIKE"
	WaypointRefuel     WaypointKind = "REFUEL"
	WaypointCheckpoint WaypointKind = "CHECKPOINT"
)

// WaypointStatus tracks route progress.
type WaypointStatus string

const (
	WaypointPending  WaypointStatus = "PENDING"
	WaypointActive   WaypointStatus = "ACTIVE"
	WaypointComplete WaypointStatus = "COMPLETE"
	WaypointSkipped  WaypointStatus = "SKIPPED"
)

// WeaponType identifies the weapon employed in an engagement.
type WeaponType string

const (
	WeaponHellfire   WeaponType = "AGM-114_HELLFIRE"
	WeaponPaveway    WeaponType = "GBU-12_PAVEWAY"
	WeaponSidewinder WeaponType = "AIM-9X_SIDEWINDER"
	WeaponJDAM       WeaponType = "GBU-38_JDAM"
	WeaponGriffin    WeaponType = "AGM-176_GRIFFIN"
)

// TargetKind classifies an engagement target.
type TargetKind string

const (
	TargetVehicle    TargetKind = "VEHICLE"
	TargetStructure  TargetKind = "STRUCTURE"
	TargetRadar      TargetKind = "RADAR"
	TargetAirDefense TargetKind = "AIR_DEFENSE"
	TargetSupply     TargetKind = "SUPPLY"
)
