package exposure

import "vpuppets-console/models"

// PersonaConflicts returns the candidate persona's ports that are already
// held by the management port or an active tunnel, in ascending order.
func PersonaConflicts(candidate *models.Persona, activeTunnelPorts []int) []int {
	occupied := map[int]bool{MgmtPort: true}
	for _, p := range activeTunnelPorts {
		occupied[p] = true
	}

	conflicts := []int{}
	for _, p := range candidate.Ports() {
		if occupied[p] {
			conflicts = append(conflicts, p)
		}
	}
	return conflicts
}

// TunnelConflicts reports whether opening trapID on defaultPort would clash
// with the system ports, another active tunnel or the active persona. The
// result is either empty or holds defaultPort alone. A trap that is already
// active never conflicts with itself. A nil systemPorts means {22}.
func TunnelConflicts(trapID string, defaultPort int, systemPorts []int, activeTunnels []models.Tunnel, activePersonaPorts []int) []int {
	for _, t := range activeTunnels {
		if t.TrapID == trapID {
			return []int{}
		}
	}

	if systemPorts == nil {
		systemPorts = []int{MgmtPort}
	}
	occupied := containsPort(systemPorts, defaultPort) || containsPort(activePersonaPorts, defaultPort)
	for _, t := range activeTunnels {
		if t.LocalPort == defaultPort {
			occupied = true
		}
	}

	if occupied {
		return []int{defaultPort}
	}
	return []int{}
}

// TunnelPorts lists the local ports of the given tunnels
func TunnelPorts(tunnels []models.Tunnel) []int {
	ports := make([]int, 0, len(tunnels))
	for _, t := range tunnels {
		ports = append(ports, t.LocalPort)
	}
	return ports
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}
