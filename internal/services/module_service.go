package services

// ModuleStore looks up course modules by cohort.
type ModuleStore interface {
	ListModules(year, studies, semester string) ([]*Module, error)
}

type ModuleService struct {
	store ModuleStore
}

func NewModuleService(store ModuleStore) *ModuleService {
	return &ModuleService{store: store}
}

type ModulesInput struct {
	Year     string `json:"year" validate:"required"`
	Studies  string `json:"studies" validate:"required"`
	Semester string `json:"semester" validate:"required"`
}

func (s *ModuleService) List(in *ModulesInput) ([]*Module, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	modules, err := s.store.ListModules(in.Year, in.Studies, in.Semester)
	if err != nil {
		return nil, storeErr(err)
	}
	return modules, nil
}
