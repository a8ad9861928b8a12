package forms

import "github.com/goliatone/go-formflow/pkg/schema"

// Form identifiers, matching the catalogue operationIds.
const (
	RegistrationID   = "registration"
	JobApplicationID = "jobApplication"
	SurveyID         = "survey"
)

// Registration fields.
const (
	RegistrationName               schema.FieldID = "name"
	RegistrationEmail              schema.FieldID = "email"
	RegistrationAge                schema.FieldID = "age"
	RegistrationAttendingWithGuest schema.FieldID = "attendingWithGuest"
	RegistrationGuestName          schema.FieldID = "guestName"
)

// Job application fields.
const (
	JobFullName               schema.FieldID = "fullName"
	JobEmail                  schema.FieldID = "email"
	JobPhoneNumber            schema.FieldID = "phoneNumber"
	JobApplyingForPosition    schema.FieldID = "applyingForPosition"
	JobRelevantExperience     schema.FieldID = "relevantExperience"
	JobPortfolioURL           schema.FieldID = "portfolioURL"
	JobManagementExperience   schema.FieldID = "managementExperience"
	JobAdditionalSkills       schema.FieldID = "additionalSkills"
	JobPreferredInterviewTime schema.FieldID = "preferredInterviewTime"
)

// Survey fields.
const (
	SurveyFullName                    schema.FieldID = "fullName"
	SurveyEmail                       schema.FieldID = "email"
	SurveyTopic                       schema.FieldID = "surveyTopic"
	SurveyFavoriteProgrammingLanguage schema.FieldID = "favoriteProgrammingLanguage"
	SurveyYearsOfExperience           schema.FieldID = "yearsOfExperience"
	SurveyExerciseFrequency           schema.FieldID = "exerciseFrequency"
	SurveyDietPreference              schema.FieldID = "dietPreference"
	SurveyHighestQualification        schema.FieldID = "highestQualification"
	SurveyFieldOfStudy                schema.FieldID = "fieldOfStudy"
	SurveyFeedback                    schema.FieldID = "feedback"
)

// fieldSets is the closed set of identifiers each form may declare. Loading a
// catalogue whose forms drift from these sets fails.
var fieldSets = map[string][]schema.FieldID{
	RegistrationID: {
		RegistrationName,
		RegistrationEmail,
		RegistrationAge,
		RegistrationAttendingWithGuest,
		RegistrationGuestName,
	},
	JobApplicationID: {
		JobFullName,
		JobEmail,
		JobPhoneNumber,
		JobApplyingForPosition,
		JobRelevantExperience,
		JobPortfolioURL,
		JobManagementExperience,
		JobAdditionalSkills,
		JobPreferredInterviewTime,
	},
	SurveyID: {
		SurveyFullName,
		SurveyEmail,
		SurveyTopic,
		SurveyFavoriteProgrammingLanguage,
		SurveyYearsOfExperience,
		SurveyExerciseFrequency,
		SurveyDietPreference,
		SurveyHighestQualification,
		SurveyFieldOfStudy,
		SurveyFeedback,
	},
}

// Fields returns the identifiers declared for form id.
func Fields(id string) []schema.FieldID {
	return append([]schema.FieldID(nil), fieldSets[id]...)
}
