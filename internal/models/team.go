package models

// Team is a group of devices with one captain device
type Team struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Members         []Member `json:"members"`
	CaptainDeviceID string   `json:"captainDeviceId"`
}

// Member returns the roster entry for deviceID
func (t Team) Member(deviceID string) (Member, bool) {
	for _, m := range t.Members {
		if m.DeviceID == deviceID {
			return m, true
		}
	}
	return Member{}, false
}

// ActiveMemberCount counts members that are not retired
func (t Team) ActiveMemberCount() int {
	n := 0
	for _, m := range t.Members {
		if !m.Retired {
			n++
		}
	}
	return n
}

// IsCaptain reports whether deviceID is the team's captain device
func (t Team) IsCaptain(deviceID string) bool {
	return deviceID != "" && t.CaptainDeviceID == deviceID
}
