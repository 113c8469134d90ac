package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Economy is the bot's economy configuration, loaded once at startup.
type Economy struct {
	Prefix                      string                    `yaml:"prefix" validate:"required,max=5"`
	CoinsGain                   decimal.Decimal           `yaml:"coins_gain" validate:"gt=0"`
	AccrualRole                 int64                     `yaml:"accrual_role" validate:"gt=0"`
	UserCommandChannel          int64                     `yaml:"user_command_channel" validate:"gte=0"`
	ServiceCategory             int64                     `yaml:"service_category" validate:"gte=0"`
	OrganizationServiceCategory int64                     `yaml:"organization_service_category" validate:"gte=0"`
	StaffRoles                  []int64                   `yaml:"staff_roles" validate:"dive,gt=0"`
	PayEnabled                  bool                      `yaml:"pay_enabled"`
	DepositEnabled              bool                      `yaml:"deposit_enabled"`
	CoinsByChat                 ChatReward                `yaml:"coins_by_chat"`
	SpecialRoles                map[int64]decimal.Decimal `yaml:"special_roles" validate:"dive,keys,gt=0,endkeys,gt=0"`
	Services                    map[string]Service        `yaml:"services" validate:"dive,keys,required,endkeys"`
	OrganizationServices        map[string]Service        `yaml:"organization_services" validate:"dive,keys,required,endkeys"`
	Messages                    map[string]string         `yaml:"messages"`

	services    map[string]models.ServiceDefinition
	orgServices map[string]models.ServiceDefinition
}

// ChatReward configures accrual for chat messages. A zero CoinsForMessage disables it.
type ChatReward struct {
	MinChars            int             `yaml:"min_chars" validate:"gte=0"`
	CoinsForMessage     decimal.Decimal `yaml:"coins_for_message" validate:"gte=0"`
	WhitelistedChannels []int64         `yaml:"whitelisted_channels" validate:"dive,gt=0"`
}

type Service struct {
	Cost               decimal.Decimal `yaml:"cost" validate:"gte=0"`
	NotifyTo           int64           `yaml:"notify_to" validate:"gt=0"`
	PrivateChannelName string          `yaml:"private_channel_name" validate:"max=100"`
	RoleToAdd          *int64          `yaml:"role_to_add" validate:"omitnil,gt=0"`
	Description        string          `yaml:"description"`
}

// ValidationError reports every problem found in an economy configuration.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid economy config %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

func (c ChatReward) Enabled() bool {
	return c.CoinsForMessage.IsPositive()
}

// Whitelisted reports whether chat accrual applies to channelID. An empty list
// allows every channel.
func (c ChatReward) Whitelisted(channelID int64) bool {
	if len(c.WhitelistedChannels) == 0 {
		return true
	}
	return utils.Contains(c.WhitelistedChannels, channelID)
}

// IsStaff reports whether any of roles is a staff role.
func (e *Economy) IsStaff(roles []int64) bool {
	for _, r := range roles {
		if slices.Contains(e.StaffRoles, r) {
			return true
		}
	}
	return false
}

// Service looks up a member service by name, case-insensitively.
func (e *Economy) Service(name string) (models.ServiceDefinition, bool) {
	s, ok := e.services[utils.NormalizeName(name)]
	return s, ok
}

// OrganizationService looks up an organization service by name, case-insensitively.
func (e *Economy) OrganizationService(name string) (models.ServiceDefinition, bool) {
	s, ok := e.orgServices[utils.NormalizeName(name)]
	return s, ok
}

// ServiceCatalog returns the member services sorted by name.
func (e *Economy) ServiceCatalog() []models.ServiceDefinition {
	return sortedCatalog(e.services)
}

// OrganizationServiceCatalog returns the organization services sorted by name.
func (e *Economy) OrganizationServiceCatalog() []models.ServiceDefinition {
	return sortedCatalog(e.orgServices)
}

func sortedCatalog(m map[string]models.ServiceDefinition) []models.ServiceDefinition {
	out := make([]models.ServiceDefinition, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b models.ServiceDefinition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// LoadEconomy reads and validates the economy configuration at path.
func LoadEconomy(path string) (*Economy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read economy config: %w", err)
	}
	return ParseEconomy(path, data)
}

// ParseEconomy decodes and validates an economy configuration. Unknown keys are rejected.
func ParseEconomy(path string, data []byte) (*Economy, error) {
	var e Economy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{err.Error()}}
	}

	if problems := validateEconomy(&e); len(problems) > 0 {
		return nil, &ValidationError{Path: path, Problems: problems}
	}

	e.CoinsByChat.WhitelistedChannels = utils.SortedUnique(e.CoinsByChat.WhitelistedChannels)

	var problems []string
	e.services, problems = buildCatalog("services", e.Services)
	var orgProblems []string
	e.orgServices, orgProblems = buildCatalog("organization_services", e.OrganizationServices)
	problems = append(problems, orgProblems...)
	if len(problems) > 0 {
		return nil, &ValidationError{Path: path, Problems: problems}
	}

	return &e, nil
}

func buildCatalog(section string, services map[string]Service) (map[string]models.ServiceDefinition, []string) {
	catalog := make(map[string]models.ServiceDefinition, len(services))
	var problems []string
	for name, s := range services {
		key := utils.NormalizeName(name)
		if _, dup := catalog[key]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate service %q", section, key))
			continue
		}
		catalog[key] = models.ServiceDefinition{
			Name:               key,
			Cost:               s.Cost,
			NotifyTo:           s.NotifyTo,
			PrivateChannelName: s.PrivateChannelName,
			RoleToAdd:          s.RoleToAdd,
			Description:        s.Description,
		}
	}
	slices.Sort(problems)
	return catalog, problems
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func validateEconomy(e *Economy) []string {
	err := newValidator().Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problem := fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			problem = fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		problems = append(problems, problem)
	}
	return problems
}

// Toggles returns the initial runtime toggles declared in the file.
func (e *Economy) Toggles() Toggles {
	return Toggles{PayEnabled: e.PayEnabled, DepositEnabled: e.DepositEnabled}
}
