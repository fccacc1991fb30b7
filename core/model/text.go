package model

// Text marshalling keeps JSON payloads and configuration files on the
// string names rather than the numeric values.

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (c VehicleClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *VehicleClass) UnmarshalText(b []byte) error {
	v, err := ParseVehicleClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (k VehicleKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *VehicleKind) UnmarshalText(b []byte) error {
	v, err := ParseVehicleKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (s OperationalStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OperationalStatus) UnmarshalText(b []byte) error {
	v, err := ParseOperationalStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
