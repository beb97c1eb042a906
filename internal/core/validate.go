package core

// ProviderCheck reports whether a provider tag is known to the gateway.
type ProviderCheck func(provider string) bool

// ValidateConfig checks a debate configuration at the ingress boundary.
// Unknown provider tags are rejected unless the binding carries an
// endpoint override (local pass-through). Returns an invalid_config
// error describing the first violation found.
func ValidateConfig(config DebateConfig, known ProviderCheck) error {
	if config.Topic == "" {
		return NewError(KindInvalidConfig, "topic must not be empty")
	}
	if config.NumRounds < 1 {
		return NewError(KindInvalidConfig, "num_rounds must be at least 1, got %d", config.NumRounds)
	}
	if len(config.Agents) < 2 {
		return NewError(KindInvalidConfig, "at least 2 agents are required, got %d", len(config.Agents))
	}

	seen := make(map[string]bool, len(config.Agents))
	for i := range config.Agents {
		agent := &config.Agents[i]
		if err := validateAgent(agent, RoleDebater, known); err != nil {
			return err
		}
		if seen[agent.AgentID] {
			return NewError(KindInvalidConfig, "duplicate agent_id %q", agent.AgentID)
		}
		seen[agent.AgentID] = true
	}

	if config.Judge != nil {
		if err := validateAgent(config.Judge, RoleJudge, known); err != nil {
			return err
		}
	}

	return nil
}

func validateAgent(agent *AgentConfig, wantRole AgentRole, known ProviderCheck) error {
	if agent.AgentID == "" {
		return NewError(KindInvalidConfig, "agent_id must not be empty")
	}
	if agent.Name == "" {
		return NewError(KindInvalidConfig, "agent %q: name must not be empty", agent.AgentID)
	}
	if agent.Role != wantRole {
		return NewError(KindInvalidConfig, "agent %q: role must be %q, got %q", agent.AgentID, wantRole, agent.Role)
	}
	if agent.Temperature < 0 || agent.Temperature > 2 {
		return NewError(KindInvalidConfig, "agent %q: temperature must be in [0,2], got %g", agent.AgentID, agent.Temperature)
	}
	if agent.MaxTokens < 1 {
		return NewError(KindInvalidConfig, "agent %q: max_tokens must be at least 1, got %d", agent.AgentID, agent.MaxTokens)
	}
	if agent.Binding.Provider == "" {
		return NewError(KindInvalidConfig, "agent %q: binding provider must not be empty", agent.AgentID)
	}
	if agent.Binding.Model == "" {
		return NewError(KindInvalidConfig, "agent %q: binding model must not be empty", agent.AgentID)
	}
	if known != nil && !known(agent.Binding.Provider) && agent.Binding.Endpoint == "" {
		return NewError(KindInvalidConfig, "agent %q: unknown provider %q (set an endpoint override for local providers)", agent.AgentID, agent.Binding.Provider)
	}
	return nil
}
