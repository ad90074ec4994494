package toolset

import (
	"github.com/sqlgate/sqlgate/executor"
	"github.com/sqlgate/sqlgate/safety"
)

const safetyPrefix = "safety check failed: "

func fromOutcome(out *executor.Outcome) Result {
	res := Result{
		"success":         out.Success,
		"message":         out.Message,
		"friendlyMessage": out.FriendlyMessage,
	}
	if out.Rows != nil {
		res["data"] = out.Rows
		res["rowCount"] = len(out.Rows)
	}
	if out.Affected != nil {
		res["affectedRows"] = *out.Affected
	}
	res["executionTime"] = out.Elapsed.Milliseconds()
	return res
}

func failure(message, friendly string) Result {
	return Result{
		"success":         false,
		"message":         message,
		"friendlyMessage": friendly,
	}
}

func blocked(v safety.Verdict) Result {
	return failure(v.Reason, safetyPrefix+v.Reason)
}

func needsConfirmation(v safety.Verdict, friendly string) Result {
	res := failure(v.Reason, friendly)
	res["needsConfirmation"] = true
	res["confirmationType"] = string(v.Kind)
	return res
}

func invalidTarget(err error) Result {
	return failure(err.Error(), "invalid connection parameters: "+err.Error())
}

func metadataFailure(err error) Result {
	return failure(err.Error(), "failed to read metadata: "+err.Error())
}
