package llm

import (
	"fmt"
	"strings"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
)

const findErrorsSystemPrompt = "You are a strict grader of mathematical proofs written in LaTeX. List every discrete error in the " +
	"proof. Respond with a JSON object {\"errors\": [{\"type\", \"location\", \"description\", \"severity\"}]} where type is one " +
	"of logic, calculation, notation, missing_step, critical; location names the step or line; severity is true when the " +
	"error invalidates the argument and false for presentation issues. Return {\"errors\": []} for a correct proof."

const appealSystemPrompt = "You review appeals against errors reported in a mathematical proof. For each appeal decide whether " +
	"the student's justification shows the reported error is not actually an error. Respond with a JSON object " +
	"{\"decisions\": [{\"error_id\", \"decision\", \"reason\"}]} where decision is resolved when the appeal is upheld and " +
	"rejected otherwise. Attached images are handwritten justifications; each one follows a label naming its number and the error id it supports."

func buildProofPrompt(problem models.Problem, solution string) string {
	builder := strings.Builder{}
	builder.WriteString("# Problem\n")
	builder.WriteString(problem.Title)
	builder.WriteString("\n\n## Statement\n")
	builder.WriteString(problem.Statement)
	builder.WriteString("\n\n## Proof\n")
	builder.WriteString(solution)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func buildAppealPrompt(problem models.Problem, solution string, appeals []evaluation.Appeal, errs []models.SubmissionError) string {
	builder := strings.Builder{}
	builder.WriteString(buildProofPrompt(problem, solution))
	builder.WriteString("\n\n## Appeals\n")
	image := 0
	for i, appeal := range appeals {
		reported := errs[i]
		fmt.Fprintf(&builder, "\n### %s\n", appeal.ErrorID)
		fmt.Fprintf(&builder, "Reported %s error at %s: %s\n", reported.Type, locationOrUnknown(reported.Location), reported.Description)
		if appeal.Justification != "" {
			fmt.Fprintf(&builder, "Justification: %s\n", appeal.Justification)
		}
		if appeal.ImageJustification != "" {
			image++
			fmt.Fprintf(&builder, "Justification attached as %s.\n", imageLabel(image, appeal.ErrorID))
		}
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func imageLabel(n int, errorID string) string {
	return fmt.Sprintf("image %d (error %s)", n, errorID)
}

func buildFeedback(outstanding []models.SubmissionError) string {
	if len(outstanding) == 0 {
		return "No outstanding errors. The proof is accepted as correct."
	}

	builder := strings.Builder{}
	builder.WriteString("### Outstanding errors\n\n")
	for _, err := range outstanding {
		weight := "minor"
		if err.Severity {
			weight = "significant"
		}
		fmt.Fprintf(&builder, "- **%s** (%s, %s): %s\n", err.Type, weight, locationOrUnknown(err.Location), err.Description)
	}
	return builder.String()
}

func locationOrUnknown(location string) string {
	if location == "" {
		return "unspecified location"
	}
	return location
}
