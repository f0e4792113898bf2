package correlation

import "vpuppets-console/models"

// NextStatus derives an actor's status from its current threat topology.
// An online actor with visible attackers becomes compromised; a compromised
// actor whose view was cleared returns online. Offline actors stay offline
// until a heartbeat revives them.
func NextStatus(current models.ActorStatus, res Result) models.ActorStatus {
	switch current {
	case models.StatusOnline, "":
		if len(res.Attackers) > 0 {
			return models.StatusCompromised
		}
		return models.StatusOnline
	case models.StatusCompromised:
		if len(res.Attackers) == 0 {
			return models.StatusOnline
		}
	}
	return current
}
