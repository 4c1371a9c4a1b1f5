package schema

import "fmt"

// validateStructural checks a single model in isolation: primary key
// presence, computed columns not claiming stored semantics, foreign key
// columns being stored columns. Cross-model checks live in
// Registry.ValidateAll.
func validateStructural(m *Model) error {
	if len(m.Columns) == 0 {
		return fmt.Errorf("no columns declared")
	}
	if m.Table == "" {
		return fmt.Errorf("no table name")
	}
	if m.Endpoint == "" {
		return fmt.Errorf("no endpoint name")
	}

	if len(m.PrimaryKeys()) == 0 {
		return fmt.Errorf("no primary key column")
	}

	for _, c := range m.Columns {
		if c.Computed {
			if c.PrimaryKey {
				return fmt.Errorf("computed column %s cannot be a primary key", c.Name)
			}
			if c.AutoIncrement || c.HasDefault {
				return fmt.Errorf("computed column %s cannot carry a default", c.Name)
			}
			if c.References != "" {
				return fmt.Errorf("computed column %s cannot be a foreign key", c.Name)
			}
		}
		if c.AutoIncrement && c.Type != TypeInteger && c.Type != TypeUUID {
			return fmt.Errorf("auto-increment column %s must be integer or uuid, got %s", c.Name, c.Type)
		}
	}

	for _, rel := range m.Relationships {
		if rel.Target == "" {
			return fmt.Errorf("relationship %s has no target model", rel.Name)
		}
		if _, clash := m.Column(rel.Name); clash {
			return fmt.Errorf("relationship %s shadows a column of the same name", rel.Name)
		}
	}

	return nil
}
