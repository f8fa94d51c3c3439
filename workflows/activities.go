package workflows

import "storefront-access-gate/activities"

// a only supplies method values for workflow.ExecuteActivity; the gate
// session never calls through it. Workers register their own populated
// Activities.
var a *activities.Activities
