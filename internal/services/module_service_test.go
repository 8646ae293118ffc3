package services

import "testing"

func TestModulesList(t *testing.T) {
	store := newMemStore()
	store.modules = []memModule{
		{name: "Anatomy", year: "2", studies: "Medecine", semester: "S1"},
		{name: "Physiology", year: "2", studies: "Medecine", semester: "S1"},
		{name: "Botany", year: "2", studies: "Pharmacie", semester: "S1"},
	}
	svc := NewModuleService(store)

	out, err := svc.List(&ModulesInput{Year: "2", Studies: "Medecine", Semester: "S1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("modules = %d, want 2", len(out))
	}
}

func TestModulesListRequiresAllFields(t *testing.T) {
	svc := NewModuleService(newMemStore())
	_, err := svc.List(&ModulesInput{Year: "2", Studies: "Medecine"})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("err = %v, want invalid", err)
	}
}
