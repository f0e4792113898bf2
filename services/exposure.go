package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"vpuppets-console/exposure"
	"vpuppets-console/models"
	"vpuppets-console/system"
)

// ExposureService reconciles port claims and gates persona and tunnel
// activation on them
type ExposureService struct {
	db     *gorm.DB
	actors *ActorService
	scans  *ScanService
	cmds   *CommandService
}

func NewExposureService(db *gorm.DB, actors *ActorService, scans *ScanService, cmds *CommandService) *ExposureService {
	return &ExposureService{db: db, actors: actors, scans: scans, cmds: cmds}
}

// Tables returns the live tables when a scan exists, estimated ones otherwise
func (s *ExposureService) Tables(ctx context.Context, actorID string) (models.ExposureTables, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return models.ExposureTables{}, err
	}
	return exposure.Reconcile(s.scans.Latest(actorID), actor.Persona, actor.Tunnels), nil
}

func (s *ExposureService) ListPersonas(ctx context.Context) ([]models.Persona, error) {
	var personas []models.Persona
	err := s.db.WithContext(ctx).Order("name").Find(&personas).Error
	return personas, err
}

// CreatePersona stores a persona with its port list normalized
func (s *ExposureService) CreatePersona(ctx context.Context, p *models.Persona) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPersona)
	}
	p.OpenPorts = models.JoinPorts(p.Ports())
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *ExposureService) ListTraps(ctx context.Context) ([]models.Trap, error) {
	var traps []models.Trap
	err := s.db.WithContext(ctx).Order("id").Find(&traps).Error
	return traps, err
}

func (s *ExposureService) persona(ctx context.Context, id uint) (*models.Persona, error) {
	var p models.Persona
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("persona %d: %w", id, ErrNotFound)
	}
	return &p, err
}

func (s *ExposureService) trap(ctx context.Context, id string) (*models.Trap, error) {
	var t models.Trap
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trap %s: %w", id, ErrNotFound)
	}
	return &t, err
}

// PersonaConflicts lists the ports of the persona the actor cannot take
func (s *ExposureService) PersonaConflicts(ctx context.Context, actorID string, personaID uint) ([]int, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.persona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return exposure.PersonaConflicts(p, exposure.TunnelPorts(actor.Tunnels)), nil
}

// TunnelConflicts reports whether the trap's default port is taken on the
// actor. System ports come from the live scan when there is one.
func (s *ExposureService) TunnelConflicts(ctx context.Context, actorID, trapID string) ([]int, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	trap, err := s.trap(ctx, trapID)
	if err != nil {
		return nil, err
	}
	return s.tunnelConflicts(actor, trap), nil
}

func (s *ExposureService) tunnelConflicts(actor *models.Actor, trap *models.Trap) []int {
	var systemPorts []int
	if live := s.scans.Latest(actor.ID); live != nil {
		systemPorts = []int{}
		for _, c := range live.System {
			systemPorts = append(systemPorts, c.Port)
		}
	}
	return exposure.TunnelConflicts(trap.ID, trap.DefaultPort, systemPorts, actor.Tunnels, actor.Persona.Ports())
}

// ActivatePersona switches the actor's persona and tells the agent.
// A conflicting persona is refused before anything changes.
func (s *ExposureService) ActivatePersona(ctx context.Context, actorID string, personaID uint) (string, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	p, err := s.persona(ctx, personaID)
	if err != nil {
		return "", err
	}
	if conflicts := exposure.PersonaConflicts(p, exposure.TunnelPorts(actor.Tunnels)); len(conflicts) > 0 {
		return "", &ConflictError{Subject: "persona " + p.Name, Ports: conflicts}
	}

	if err := s.db.WithContext(ctx).Model(&models.Actor{}).Where("id = ?", actorID).Update("persona_id", p.ID).Error; err != nil {
		return "", fmt.Errorf("set persona of %s: %w", actorID, err)
	}
	s.scans.Forget(actorID)
	system.Info("Actor %s persona -> %s", actor.Name, p.Name)
	return s.cmds.Issue(ctx, actorID, fmt.Sprintf("persona apply %s", p.Name))
}

// ActivateTunnel opens a tunnel from the trap's default port. Opening a trap
// that is already active returns the existing tunnel and issues nothing.
func (s *ExposureService) ActivateTunnel(ctx context.Context, actorID, trapID string) (*models.Tunnel, string, error) {
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	trap, err := s.trap(ctx, trapID)
	if err != nil {
		return nil, "", err
	}
	for i := range actor.Tunnels {
		if actor.Tunnels[i].TrapID == trapID {
			return &actor.Tunnels[i], "", nil
		}
	}
	if conflicts := s.tunnelConflicts(actor, trap); len(conflicts) > 0 {
		return nil, "", &ConflictError{Subject: "trap " + trap.ID, Ports: conflicts}
	}

	tunnel := models.Tunnel{
		ActorID:     actorID,
		TrapID:      trap.ID,
		LocalPort:   trap.DefaultPort,
		ServiceType: trap.ServiceType,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&tunnel).Error; err != nil {
		return nil, "", fmt.Errorf("store tunnel: %w", err)
	}
	s.scans.Forget(actorID)
	system.Info("Actor %s tunnel opened: %s on port %d", actor.Name, trap.ID, trap.DefaultPort)

	jobID, err := s.cmds.Issue(ctx, actorID, fmt.Sprintf("tunnel open %s %d", trap.ID, trap.DefaultPort))
	if err != nil {
		return &tunnel, "", err
	}
	return &tunnel, jobID, nil
}

// DeactivateTunnel closes the actor's tunnel to trapID
func (s *ExposureService) DeactivateTunnel(ctx context.Context, actorID, trapID string) (string, error) {
	res := s.db.WithContext(ctx).Where("actor_id = ? AND trap_id = ?", actorID, trapID).Delete(&models.Tunnel{})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("tunnel %s on %s: %w", trapID, actorID, ErrNotFound)
	}
	s.scans.Forget(actorID)
	system.Info("Actor %s tunnel closed: %s", actorID, trapID)
	return s.cmds.Issue(ctx, actorID, fmt.Sprintf("tunnel close %s", trapID))
}
