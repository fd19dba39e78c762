package policy

func bound(v float64) *float64 { return &v }

// workerBounds is the absolute domain for worker counts
var workerMin, workerMax = bound(0), bound(100000)

func workers(name, desc string) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsRange:     true,
		SupportsUnlimited: true,
		Domain:            DomainNumeric,
		Min:               workerMin,
		Max:               workerMax,
		Integer:           true,
	}
}

func numeric(name, desc string, lo, hi float64, integer bool) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsRange:     true,
		SupportsUnlimited: true,
		Domain:            DomainNumeric,
		Min:               bound(lo),
		Max:               bound(hi),
		Integer:           integer,
	}
}

func enumerated(name, desc string, values ...string) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsAllowlist: true,
		SupportsBlocklist: true,
		SupportsUnlimited: true,
		Domain:            DomainEnumerated,
		Enum:              values,
	}
}

func sourced(name, desc string, source OptionSourceName, extra ...string) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsAllowlist: true,
		SupportsBlocklist: true,
		SupportsRegex:     true,
		SupportsUnlimited: true,
		Domain:            DomainEnumerated,
		Options:           source,
		Enum:              extra,
	}
}

func freeString(name, desc string) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsAllowlist: true,
		SupportsBlocklist: true,
		SupportsRegex:     true,
		SupportsUnlimited: true,
		Domain:            DomainFreeString,
	}
}

func boolean(name, desc string) Profile {
	return Profile{
		Name:              name,
		Description:       desc,
		SupportsUnlimited: true,
		Domain:            DomainBoolean,
	}
}

func wildcard(p Profile, kind Wildcard) Profile {
	p.Wildcard = kind
	return p
}

// SparkVersionAliases are the version aliases the workspace resolves itself
var SparkVersionAliases = []string{
	"auto:latest",
	"auto:latest-ml",
	"auto:latest-lts",
	"auto:latest-lts-ml",
	"auto:prev-major",
	"auto:prev-major-ml",
	"auto:prev-lts",
	"auto:prev-lts-ml",
}

// DefaultProfiles returns the supported cluster attributes
func DefaultProfiles() []Profile {
	sparkVersion := sourced("spark_version", "Databricks Runtime version", SourceSparkVersions, SparkVersionAliases...)
	// explicit versions such as 15.3.x-scala2.12 may be typed in directly
	sparkVersion.Suggest = true

	return []Profile{
		sparkVersion,
		workers("autoscale.min_workers", "Minimum number of workers when autoscaling"),
		workers("autoscale.max_workers", "Maximum number of workers when autoscaling"),
		workers("num_workers", "Fixed number of workers"),
		sourced("node_type_id", "Worker node type", SourceNodeTypes),
		sourced("driver_node_type_id", "Driver node type", SourceNodeTypes),
		sourced("instance_pool_id", "Worker instance pool", SourceInstancePools),
		sourced("driver_instance_pool_id", "Driver instance pool", SourceInstancePools),
		numeric("autotermination_minutes", "Idle minutes before the cluster terminates (0 disables)", 0, 43200, true),
		enumerated("aws_attributes.availability", "AWS instance availability", "SPOT", "ON_DEMAND", "SPOT_WITH_FALLBACK"),
		sourced("aws_attributes.zone_id", "AWS availability zone", SourceZones, "auto"),
		sourced("aws_attributes.instance_profile_arn", "AWS instance profile", SourceInstanceProfiles),
		numeric("aws_attributes.first_on_demand", "Nodes placed on on-demand instances", 0, 100000, true),
		numeric("aws_attributes.spot_bid_price_percent", "Spot bid as a percentage of the on-demand price", 1, 10000, true),
		numeric("aws_attributes.ebs_volume_count", "EBS volumes per instance", 0, 10, true),
		numeric("aws_attributes.ebs_volume_size", "EBS volume size in GiB", 1, 65535, true),
		enumerated("azure_attributes.availability", "Azure instance availability", "SPOT_AZURE", "ON_DEMAND_AZURE", "SPOT_WITH_FALLBACK_AZURE"),
		enumerated("gcp_attributes.availability", "GCP instance availability", "PREEMPTIBLE_GCP", "ON_DEMAND_GCP", "PREEMPTIBLE_WITH_FALLBACK_GCP"),
		boolean("enable_elastic_disk", "Autoscaling local storage"),
		boolean("enable_local_disk_encryption", "Encrypt local disks"),
		enumerated("runtime_engine", "Runtime engine", "STANDARD", "PHOTON"),
		enumerated("data_security_mode", "Data access mode", "NONE", "SINGLE_USER", "USER_ISOLATION", "LEGACY_TABLE_ACL", "LEGACY_PASSTHROUGH", "LEGACY_SINGLE_USER"),
		enumerated("cluster_type", "Cluster type the policy applies to", "all-purpose", "job", "dlt"),
		freeString("cluster_name", "Cluster name"),
		freeString("single_user_name", "User or group for single user access mode"),
		numeric("dbus_per_hour", "Maximum DBU per hour of the cluster", 0, 100000, false),
		wildcard(freeString("custom_tags.*", "Custom tag value"), WildcardKey),
		wildcard(freeString("spark_conf.*", "Spark configuration value"), WildcardKey),
		wildcard(freeString("spark_env_vars.*", "Spark environment variable"), WildcardKey),
		wildcard(freeString("ssh_public_keys.*", "SSH public key"), WildcardIndex),
		wildcard(freeString("init_scripts.*.workspace.destination", "Workspace init script path"), WildcardIndex),
	}
}

// DefaultCatalog returns a catalog of DefaultProfiles
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultProfiles()...)
}
