// Package exposure reconciles the port claims of an actor into the
// "system" and "application" exposure tables.
package exposure

import (
	"sort"

	"vpuppets-console/models"
)

// MgmtPort is always held by the host OS (agent management SSH)
const MgmtPort = 22

var wellKnown = map[int]string{
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	53:   "DNS",
	80:   "HTTP",
	443:  "HTTPS",
	3000: "Grafana/Dev",
	3306: "MySQL",
	5432: "PostgreSQL",
	6379: "Redis",
	8080: "HTTP-Alt",
}

// ServiceName maps a port to its human label, "Unknown" when not listed
func ServiceName(port int) string {
	if name, ok := wellKnown[port]; ok {
		return name
	}
	return "Unknown"
}

// Reconcile builds the exposure tables of one actor.
//
// A live scan, when present, is returned verbatim and the persona and tunnel
// claims are not consulted. Otherwise the tables are estimated: the system
// table holds only the management SSH port, and the application table is the
// persona's declared ports overlaid by the active tunnels, sorted by port.
func Reconcile(live *models.ExposureTables, persona *models.Persona, tunnels []models.Tunnel) models.ExposureTables {
	if live != nil {
		return models.ExposureTables{
			System:      append([]models.PortClaim{}, live.System...),
			Application: append([]models.PortClaim{}, live.Application...),
			Live:        true,
			ScannedAt:   live.ScannedAt,
		}
	}

	out := models.ExposureTables{
		System: []models.PortClaim{
			{Port: MgmtPort, Proto: "TCP", Service: "SSH (Mgmt)", Source: models.SourceHostOS},
		},
		Application: []models.PortClaim{},
	}

	rows := make(map[int]int)
	if persona != nil {
		for _, port := range persona.Ports() {
			rows[port] = len(out.Application)
			out.Application = append(out.Application, models.PortClaim{
				Port:    port,
				Proto:   "TCP",
				Service: ServiceName(port),
				Source:  models.SourcePersonaPrefix + persona.Name,
			})
		}
	}

	for _, t := range tunnels {
		if i, ok := rows[t.LocalPort]; ok {
			out.Application[i].Source = models.SourceTunnelOverride
			out.Application[i].Service = t.ServiceType
			continue
		}
		rows[t.LocalPort] = len(out.Application)
		out.Application = append(out.Application, models.PortClaim{
			Port:    t.LocalPort,
			Proto:   "TCP",
			Service: t.ServiceType,
			Source:  models.SourceTunnel,
		})
	}

	sort.SliceStable(out.Application, func(i, j int) bool {
		return out.Application[i].Port < out.Application[j].Port
	})
	return out
}
