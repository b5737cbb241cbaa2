package chat

// PlanningTrigger is the one input answered locally instead of through the
// workflow endpoint. Matching is exact after trimming surrounding whitespace.
const PlanningTrigger = "Start Q2 2025 inventory planning"

// PlanningReply is the canned multi-scenario markdown answer for the planning
// trigger.
const PlanningReply = `![Inventory Dashboard](/public/dashboard.png)

**Q2 2025 Inventory Planning Scenarios**

**Scenario A: Max Stock Ahead**
"Build up stock by 15% ahead of peak demand in December to avoid last-minute shortages."

**Pros:** Ensures availability during peak season
**Cons:** Risk of warehouse overflow, higher holding cost

**Scenario B: Balanced Flow**
"Maintain current inbound pace, but accelerate outbound by pushing sales in November to clear space."

**Pros:** Avoids overflow and reduces scrap risk
**Cons:** Requires strong coordination with Sales

**Scenario C: Agile Just-in-Time**
"Delay non-priority inbound items by 2–3 weeks and allocate WH space dynamically by demand pattern."

**Pros:** Flexible and cost-effective
**Cons:** Higher risk of stockouts, requires precise demand forecasting`
