package testing

import (
	"fmt"
	"math/rand"

	"github.com/sitearc/docnum/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestProject creates a project with the given code
func (tf *TestFixtures) CreateTestProject(code string) (*models.Project, error) {
	if code == "" {
		code = fmt.Sprintf("P%03d", rand.Intn(900)+100)
	}

	project := &models.Project{
		ProjectCode: code,
		Name:        fmt.Sprintf("Test Project %s", code),
	}
	if err := tf.DB.DB.Create(project).Error; err != nil {
		return nil, fmt.Errorf("failed to create test project: %w", err)
	}
	return project, nil
}

// CreateTestOrganization creates an organization with the given code
func (tf *TestFixtures) CreateTestOrganization(code string) (*models.Organization, error) {
	if code == "" {
		code = fmt.Sprintf("ORG%03d", rand.Intn(900)+100)
	}

	org := &models.Organization{
		OrganizationCode: code,
		Name:             fmt.Sprintf("Test Organization %s", code),
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create test organization: %w", err)
	}
	return org, nil
}

// CreateTestCorrespondenceType creates a document type with the given code
func (tf *TestFixtures) CreateTestCorrespondenceType(code string) (*models.CorrespondenceType, error) {
	if code == "" {
		code = fmt.Sprintf("T%03d", rand.Intn(900)+100)
	}

	ct := &models.CorrespondenceType{
		TypeCode: code,
		Name:     fmt.Sprintf("Test Type %s", code),
	}
	if err := tf.DB.DB.Create(ct).Error; err != nil {
		return nil, fmt.Errorf("failed to create test correspondence type: %w", err)
	}
	return ct, nil
}

// CreateTestDiscipline creates a discipline with the given code
func (tf *TestFixtures) CreateTestDiscipline(code string) (*models.Discipline, error) {
	if code == "" {
		code = fmt.Sprintf("D%03d", rand.Intn(900)+100)
	}

	discipline := &models.Discipline{
		DisciplineCode: code,
		Name:           fmt.Sprintf("Test Discipline %s", code),
	}
	if err := tf.DB.DB.Create(discipline).Error; err != nil {
		return nil, fmt.Errorf("failed to create test discipline: %w", err)
	}
	return discipline, nil
}

// CreateTestFormat creates a numbering template for (project, type). Pass a
// nil typeID for the project-wide default template.
func (tf *TestFixtures) CreateTestFormat(projectID uint, typeID *uint, template string, resetYearly bool) (*models.NumberFormat, error) {
	format := &models.NumberFormat{
		ProjectID:           projectID,
		TypeID:              typeID,
		FormatTemplate:      template,
		ResetSequenceYearly: resetYearly,
	}
	if err := tf.DB.DB.Create(format).Error; err != nil {
		return nil, fmt.Errorf("failed to create test format: %w", err)
	}
	return format, nil
}

// NumberingContext bundles the master data one generation request needs
type NumberingContext struct {
	Project    *models.Project
	Originator *models.Organization
	Recipient  *models.Organization
	Type       *models.CorrespondenceType
	Discipline *models.Discipline
}

// CreateNumberingContext creates a full set of master data for generation tests
func (tf *TestFixtures) CreateNumberingContext() (*NumberingContext, error) {
	project, err := tf.CreateTestProject("")
	if err != nil {
		return nil, err
	}
	originator, err := tf.CreateTestOrganization("")
	if err != nil {
		return nil, err
	}
	recipient, err := tf.CreateTestOrganization("")
	if err != nil {
		return nil, err
	}
	ct, err := tf.CreateTestCorrespondenceType("")
	if err != nil {
		return nil, err
	}
	discipline, err := tf.CreateTestDiscipline("")
	if err != nil {
		return nil, err
	}

	return &NumberingContext{
		Project:    project,
		Originator: originator,
		Recipient:  recipient,
		Type:       ct,
		Discipline: discipline,
	}, nil
}
